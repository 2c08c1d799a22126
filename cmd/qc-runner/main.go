package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/lzap/qctask/config"
	"github.com/lzap/qctask/log"
	"github.com/lzap/qctask/modules"
	_ "github.com/lzap/qctask/modules/tpc"
	"github.com/lzap/qctask/oteladapters"
	"github.com/lzap/qctask/runner"
)

func init() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on environment variables")
	}
}

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file (defaults are used when empty)")
	level := flag.String("level", "", "Override the configured log level (error, info, debug, trace)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *level != "" {
		cfg.Logging.Level = *level
	}

	logger, err := log.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := cfg.NewTransport(ctx, logger)
	if err != nil {
		logger.Error(err, "unable to create transport", "type", cfg.Transport.Type)
		os.Exit(1)
	}

	repo, err := cfg.NewRepository(ctx, logger)
	if err != nil {
		logger.Error(err, "unable to create repository", "type", cfg.Repository.Type)
		os.Exit(1)
	}
	defer repo.Close()

	task, err := modules.New(cfg.Task.ClassName, logger.WithName(cfg.Task.Name))
	if err != nil {
		logger.Error(err, "unable to create task", "class", cfg.Task.ClassName, "known", modules.Classes())
		os.Exit(1)
	}

	meterProvider, err := cfg.NewMeterProvider(ctx)
	if err != nil {
		logger.Error(err, "unable to create meter provider", "endpoint", cfg.Metrics.Endpoint)
		os.Exit(1)
	}
	otel.SetMeterProvider(meterProvider)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "unable to flush metrics")
		}
	}()

	metrics := oteladapters.NewMetricsCollector(otel.GetMeterProvider().Meter("github.com/lzap/qctask"))
	r, err := runner.New(cfg.Runner(), task, transport, repo, logger.WithName("runner"), runner.WithMetrics(metrics))
	if err != nil {
		logger.Error(err, "unable to create runner")
		os.Exit(1)
	}

	if err := r.Init(ctx); err != nil {
		logger.Error(err, "task initialization failed")
		os.Exit(1)
	}

	logger.Info("starting QC task", "task", cfg.Task.Name, "class", cfg.Task.ClassName,
		"activity", cfg.Activity.ID, "transport", cfg.Transport.Type, "repository", cfg.Repository.Type)
	if err := r.Run(ctx, cfg.Activity); err != nil {
		logger.Error(err, "QC task failed")
		os.Exit(1)
	}
	logger.Info("QC task finished", "cycles", r.Cycles())
}
