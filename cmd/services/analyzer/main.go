package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/soltixdb/tagwatch/internal/config"
	"github.com/soltixdb/tagwatch/internal/csvio"
	"github.com/soltixdb/tagwatch/internal/jobs"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/pipeline"
	"github.com/soltixdb/tagwatch/internal/queue"
	"github.com/soltixdb/tagwatch/internal/router"
	"github.com/soltixdb/tagwatch/internal/services"
	"github.com/soltixdb/tagwatch/internal/sink"
	"github.com/soltixdb/tagwatch/internal/source"
	"github.com/soltixdb/tagwatch/internal/subscriber"
	"github.com/soltixdb/tagwatch/internal/utils"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging, "analyzer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Analyzer service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Fatal("Failed to prepare directories", "error", err)
	}

	// Datapoint source
	logger.Info("Opening datapoint source", "type", cfg.Source.Type, "path", cfg.Source.Path)
	retriever, err := source.New(cfg.Source, logger)
	if err != nil {
		logger.Fatal("Failed to open source", "error", err)
	}
	if closer, ok := retriever.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	// Pipeline defaults
	opts := pipeline.OptionsFromConfig(cfg.Analysis)
	runner, err := pipeline.NewRunner(opts, logger)
	if err != nil {
		logger.Fatal("Invalid analysis configuration", "error", err)
	}

	tags := pipeline.NewService(runner, retriever, logger).
		WithExporter(csvio.NewExporter(cfg.Export, logger))

	// Optional push-back of estimated TTF series
	pusher, closeSink, err := sink.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open sink", "type", cfg.Sink.Type, "error", err)
	}
	defer func() { _ = closeSink() }()
	if pusher != nil {
		tags.WithPusher(pusher)
		logger.Info("Push-back enabled", "sink", cfg.Sink.Type, "registry", cfg.Registry.Type)
	}

	// Log authentication status
	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	analysis := services.NewAnalysisService(logger, opts, tags, cfg.Source.GetTimezone())
	app := router.New(logger, analysis, *cfg)

	// Optional queue-driven analysis jobs
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	if cfg.Jobs.Enabled {
		closeJobs, err := startJobs(jobsCtx, cfg, analysis, logger)
		if err != nil {
			logger.Fatal("Failed to start job worker", "queue", cfg.Queue.Type, "error", err)
		}
		defer closeJobs()
	}

	// Start server in goroutine
	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopJobs()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

// startJobs subscribes the job worker and returns its cleanup function
func startJobs(ctx context.Context, cfg *config.Config, analysis *services.AnalysisService, logger *logging.Logger) (func(), error) {
	consumer := cfg.Jobs.Consumer
	if consumer == "" {
		consumer, _ = os.Hostname()
	}

	sub, err := subscriber.New(cfg.Queue, subscriber.Config{
		Group:      cfg.Jobs.Group,
		Consumer:   consumer,
		MaxDeliver: cfg.Jobs.MaxDeliver,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open job subscriber: %w", err)
	}

	pub, err := queue.NewPublisher(cfg.Queue)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to open result publisher: %w", err)
	}

	worker := jobs.NewWorker(analysis, sub, pub, cfg.Jobs, logger)
	if err := worker.Start(ctx); err != nil {
		_ = sub.Close()
		_ = pub.Close()
		return nil, err
	}

	return func() {
		if err := worker.Stop(); err != nil {
			logger.Warn("Failed to stop job worker", "error", err)
		}
		_ = sub.Close()
		_ = pub.Close()
	}, nil
}
