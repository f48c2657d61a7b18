package service

import (
	"context"
	"sync"
	"time"

	"salesbridge/internal/constants"

	"github.com/sirupsen/logrus"
)

// Job is a unit of webhook processing work.
type Job func(ctx context.Context) error

// Dispatcher decouples webhook acknowledgement from processing.
type Dispatcher interface {
	// Dispatch schedules a job. The caller has already acknowledged the
	// webhook; a job error is logged, never surfaced to the sender.
	Dispatch(name string, job Job)
	// Shutdown drains scheduled work, bounded by the drain timeout.
	Shutdown()
}

// InlineDispatcher starts each job on its own goroutine as soon as it
// is scheduled, so the caller can acknowledge the webhook without
// waiting on the work. Useful for small deployments that do not need a
// worker pool.
type InlineDispatcher struct {
	ctx    context.Context
	wg     sync.WaitGroup
	logger *logrus.Logger
}

func NewInlineDispatcher(ctx context.Context, logger *logrus.Logger) *InlineDispatcher {
	return &InlineDispatcher{ctx: ctx, logger: logger}
}

func (d *InlineDispatcher) Dispatch(name string, job Job) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := job(d.ctx); err != nil {
			d.logger.WithError(err).WithField(LogFieldOperation, name).Error("Job failed")
		}
	}()
}

// Shutdown waits for jobs already started.
func (d *InlineDispatcher) Shutdown() {
	d.wg.Wait()
}

// PoolDispatcher runs jobs on a fixed worker pool with a bounded
// queue. When the queue is full, the job runs on the caller's
// goroutine instead of being dropped.
type PoolDispatcher struct {
	ctx          context.Context
	cancel       context.CancelFunc
	jobs         chan namedJob
	wg           sync.WaitGroup
	drainTimeout time.Duration
	logger       *logrus.Logger

	mu     sync.Mutex
	closed bool
}

type namedJob struct {
	name string
	run  Job
}

func NewPoolDispatcher(ctx context.Context, workers, queueSize int, logger *logrus.Logger) *PoolDispatcher {
	if workers <= 0 {
		workers = constants.DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = constants.DefaultJobQueueSize
	}

	ctx, cancel := context.WithCancel(ctx)
	d := &PoolDispatcher{
		ctx:          ctx,
		cancel:       cancel,
		jobs:         make(chan namedJob, queueSize),
		drainTimeout: time.Duration(constants.DefaultDrainTimeoutSec) * time.Second,
		logger:       logger,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

func (d *PoolDispatcher) worker(id int) {
	defer d.wg.Done()
	for job := range d.jobs {
		d.runJob(job)
	}
	d.logger.WithField("worker", id).Debug("Worker stopped")
}

func (d *PoolDispatcher) runJob(job namedJob) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				LogFieldOperation: job.name,
				"panic":           r,
			}).Error("Job panicked")
		}
	}()

	if err := job.run(d.ctx); err != nil {
		d.logger.WithError(err).WithField(LogFieldOperation, job.name).Error("Job failed")
	}
}

// Dispatch enqueues the job, or runs it on the caller's goroutine when
// the queue is full or the dispatcher is shut down. The mutex is held
// across the channel send so Shutdown cannot close the channel under a
// concurrent send; the send never blocks, it falls through to the
// inline path instead.
func (d *PoolDispatcher) Dispatch(name string, job Job) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.runJob(namedJob{name: name, run: job})
		return
	}

	select {
	case d.jobs <- namedJob{name: name, run: job}:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		d.logger.WithField(LogFieldOperation, name).Warn("Job queue full, running inline")
		d.runJob(namedJob{name: name, run: job})
	}
}

// Shutdown stops accepting work and waits for in-flight jobs up to the
// drain timeout. Jobs still queued after the timeout are abandoned.
func (d *PoolDispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher drained")
	case <-time.After(d.drainTimeout):
		d.logger.Warn("Dispatcher drain timed out")
	}
	d.cancel()
}
