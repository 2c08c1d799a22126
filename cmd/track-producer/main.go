package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lzap/qctask"
	"github.com/lzap/qctask/config"
	dftpc "github.com/lzap/qctask/dataformats/tpc"
	"github.com/lzap/qctask/log"
)

func init() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on environment variables")
	}
}

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file (defaults are used when empty)")
	batches := flag.Int("batches", 10, "Number of track batches to send, 0 sends until interrupted")
	tracks := flag.Int("tracks", 100, "Number of tracks in a batch")
	interval := flag.Duration("interval", time.Second, "Pause between batches")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
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
	if cfg.Transport.Type == config.TypeMem {
		fmt.Fprintln(os.Stderr, "The in-memory transport cannot reach another process, configure redis or sqs")
		os.Exit(1)
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
	defer transport.Stop()

	binding := cfg.Task.Bindings[0]
	r := rand.New(rand.NewSource(*seed))
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for sent := 0; *batches == 0 || sent < *batches; sent++ {
		batch := dftpc.SampleTracks(r, *tracks)
		if err := transport.Send(ctx, qctask.PendingMessage{Binding: binding, Body: batch}); err != nil {
			logger.Error(err, "unable to send tracks", "batch", sent)
			return
		}
		logger.V(1).Info("sent tracks", "batch", sent, "tracks", len(batch), "binding", binding)

		select {
		case <-ctx.Done():
			logger.Info("interrupted", "batches", sent+1)
			return
		case <-ticker.C:
		}
	}

	stats, err := transport.Stats(ctx)
	if err != nil {
		logger.Error(err, "unable to read queue stats")
		return
	}
	logger.Info("all batches sent", "batches", *batches, "pending", stats.PendingMessages)
}
