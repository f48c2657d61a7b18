package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesbridge/internal/config"
	"salesbridge/internal/constants"
	"salesbridge/internal/database"
	"salesbridge/internal/dedup"
	"salesbridge/internal/models"
	"salesbridge/internal/retry"
	"salesbridge/internal/service"
	"salesbridge/internal/tracing"
	"salesbridge/pkg/asaas"
	"salesbridge/pkg/dpk"
	"salesbridge/pkg/infosimples"
	"salesbridge/pkg/llm"
	"salesbridge/pkg/whatsapp"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	envFile = flag.String("env-file", "", "Path to an optional .env file")
	version = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("salesbridge %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting salesbridge")

	cfg, err := config.Load(*envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	guard := dedup.NewGuard(
		time.Duration(cfg.Dedup.TTLMinutes)*time.Minute,
		time.Duration(cfg.Dedup.SweepMinutes)*time.Minute,
		db,
	)

	waClient := whatsapp.NewClient(whatsapp.ClientConfig{
		GraphVersion:  cfg.WhatsApp.GraphVersion,
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		TimeoutSec:    int(cfg.WhatsApp.Timeout / time.Second),
	})
	if !waClient.Configured() {
		logger.Warn("WhatsApp credentials missing, outbound delivery is disabled")
	}

	tracker := service.NewTracker(db, logger)
	deliverer := service.NewDeliverer(waClient, logger)

	agent, err := buildAgent(cfg, db, logger)
	if err != nil {
		return err
	}

	var dispatcher service.Dispatcher
	if cfg.Queue.Mode == models.QueueModeInline {
		dispatcher = service.NewInlineDispatcher(ctx, logger)
	} else {
		dispatcher = service.NewPoolDispatcher(ctx, cfg.Queue.Workers, cfg.Queue.QueueSize, logger)
	}
	defer dispatcher.Shutdown()

	pipeline := service.NewPipeline(db, guard, tracker, agent, deliverer, dispatcher, logger)
	payments := service.NewPaymentProcessor(db, tracker, deliverer, dispatcher, logger)

	scheduler := service.NewScheduler(db, cfg.RetentionDays, cfg.CleanupIntervalHours, logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	server, err := NewServer(cfg, pipeline, payments, tracker, db, logger)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	server.baseCtx = context.WithValue(context.Background(), service.VerboseContextKey, *verbose)

	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

func buildAgent(cfg *models.Config, db *database.Database, logger *logrus.Logger) (service.AgentBridge, error) {
	switch cfg.Agent.Mode {
	case models.AgentModeRemote:
		client := dpk.NewClient(cfg.Agent.DPKBaseURL, cfg.Agent.DPKSecret, cfg.Agent.DPKTimeout)
		return service.NewRemoteAgent(client, db, cfg.Agent.HistoryLimit, logger), nil
	case models.AgentModeLocal:
		llmClient := llm.NewClient(cfg.Agent.LLMBaseURL, cfg.Agent.LLMAPIKey, cfg.Agent.LLMModel, cfg.Agent.LLMTimeout)
		asaasClient := asaas.NewClient(cfg.Asaas.APIBaseURL, cfg.Asaas.APIKey, cfg.Asaas.Timeout)
		registryClient := infosimples.NewClient(cfg.Agent.InfosimplesBaseURL, cfg.Agent.InfosimplesToken, cfg.Asaas.Timeout)
		toolbox := service.NewToolbox(asaasClient, registryClient, logger)
		return service.NewLocalAgent(llmClient, toolbox, db, cfg.Agent.HistoryLimit, logger), nil
	default:
		return nil, fmt.Errorf("unknown agent mode: %s", cfg.Agent.Mode)
	}
}
