package metrics

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType identifies what kind of measurement a Metric holds.
type MetricType string

const (
	Counter   MetricType = "counter"
	Timer     MetricType = "timer"
	Histogram MetricType = "histogram"
	Gauge     MetricType = "gauge"
)

// Metric is a single counter or gauge with its labels.
type Metric struct {
	Name        string            `json:"name"`
	Type        MetricType        `json:"type"`
	Value       float64           `json:"value"`
	Count       int64             `json:"count,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Description string            `json:"description,omitempty"`
	LastUpdate  time.Time         `json:"last_update"`
}

// TimerMetric aggregates duration samples in milliseconds.
type TimerMetric struct {
	Count   int64   `json:"count"`
	Sum     float64 `json:"sum_ms"`
	Min     float64 `json:"min_ms"`
	Max     float64 `json:"max_ms"`
	Average float64 `json:"avg_ms"`
	P95     float64 `json:"p95_ms,omitempty"`
	P99     float64 `json:"p99_ms,omitempty"`
	samples []float64
}

// maxTimerSamples bounds the window kept for percentile calculation.
const maxTimerSamples = 1000

// percentileMinSamples is the smallest window for which percentiles are reported.
const percentileMinSamples = 10

// Registry is an in-memory metrics store safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Metric
	timers    map[string]*TimerMetric
	gauges    map[string]*Metric
	startTime time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Metric),
		timers:    make(map[string]*TimerMetric),
		gauges:    make(map[string]*Metric),
		startTime: time.Now(),
	}
}

var globalRegistry = NewRegistry()

// GetRegistry returns the process-wide registry.
func GetRegistry() *Registry {
	return globalRegistry
}

// IncrementCounter adds one to the counter identified by name and labels.
func (r *Registry) IncrementCounter(name string, labels map[string]string, description string) {
	r.AddToCounter(name, 1, labels, description)
}

// AddToCounter adds value to the counter identified by name and labels,
// creating it on first use.
func (r *Registry) AddToCounter(name string, value float64, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	counter, ok := r.counters[key]
	if !ok {
		counter = &Metric{
			Name:        name,
			Type:        Counter,
			Labels:      maps.Clone(labels),
			Description: description,
		}
		r.counters[key] = counter
	}
	counter.Value += value
	counter.LastUpdate = time.Now()
}

// RecordTimer folds one duration sample into the named timer.
func (r *Registry) RecordTimer(name string, duration time.Duration, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	ms := float64(duration.Nanoseconds()) / 1e6

	timer, ok := r.timers[key]
	if !ok {
		r.timers[key] = &TimerMetric{
			Count:   1,
			Sum:     ms,
			Min:     ms,
			Max:     ms,
			Average: ms,
			samples: []float64{ms},
		}
		return
	}

	timer.Count++
	timer.Sum += ms
	timer.Average = timer.Sum / float64(timer.Count)
	if ms < timer.Min {
		timer.Min = ms
	}
	if ms > timer.Max {
		timer.Max = ms
	}

	timer.samples = append(timer.samples, ms)
	if len(timer.samples) > maxTimerSamples {
		timer.samples = timer.samples[len(timer.samples)-maxTimerSamples:]
	}
	if len(timer.samples) >= percentileMinSamples {
		sorted := make([]float64, len(timer.samples))
		copy(sorted, timer.samples)
		sort.Float64s(sorted)
		timer.P95 = percentile(sorted, 0.95)
		timer.P99 = percentile(sorted, 0.99)
	}
}

// SetGauge overwrites the gauge identified by name and labels.
func (r *Registry) SetGauge(name string, value float64, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gauges[metricKey(name, labels)] = &Metric{
		Name:        name,
		Type:        Gauge,
		Value:       value,
		Labels:      maps.Clone(labels),
		Description: description,
		LastUpdate:  time.Now(),
	}
}

// Snapshot is a point-in-time copy of every metric in a registry.
type Snapshot struct {
	Counters  map[string]*Metric      `json:"counters"`
	Timers    map[string]*TimerMetric `json:"timers"`
	Gauges    map[string]*Metric      `json:"gauges"`
	UptimeMs  int64                   `json:"uptime_ms"`
	Timestamp int64                   `json:"timestamp"`
}

// GetAllMetrics snapshots every metric plus registry uptime, keyed the same
// way the registry stores them.
func (r *Registry) GetAllMetrics() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Snapshot{
		Counters:  maps.Clone(r.counters),
		Timers:    maps.Clone(r.timers),
		Gauges:    maps.Clone(r.gauges),
		UptimeMs:  time.Since(r.startTime).Milliseconds(),
		Timestamp: time.Now().Unix(),
	}
}

// metricKey joins name and labels into a stable map key. Label keys are
// sorted so the same label set always produces the same key.
func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		fmt.Fprintf(&b, "_%s:%s", k, labels[k])
	}
	return b.String()
}

// percentile reads the pth percentile from an already sorted sample slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Package-level helpers operating on the global registry.

func IncrementCounter(name string, labels map[string]string, description string) {
	globalRegistry.IncrementCounter(name, labels, description)
}

func AddToCounter(name string, value float64, labels map[string]string, description string) {
	globalRegistry.AddToCounter(name, value, labels, description)
}

func RecordTimer(name string, duration time.Duration, labels map[string]string, description string) {
	globalRegistry.RecordTimer(name, duration, labels, description)
}

func SetGauge(name string, value float64, labels map[string]string, description string) {
	globalRegistry.SetGauge(name, value, labels, description)
}

func GetAllMetrics() Snapshot {
	return globalRegistry.GetAllMetrics()
}
