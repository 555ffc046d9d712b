package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/careerloop/internal/api"
	"github.com/mattjoyce/careerloop/internal/bot"
	"github.com/mattjoyce/careerloop/internal/coach"
	"github.com/mattjoyce/careerloop/internal/config"
	"github.com/mattjoyce/careerloop/internal/provider"
	"github.com/mattjoyce/careerloop/internal/storage"
	"github.com/mattjoyce/careerloop/internal/store"
	"github.com/mattjoyce/careerloop/internal/stream"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		if err := runStart(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "watch":
		if err := runWatch(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("careerloop %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: careerloop <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  start     Start the CareerLoop service")
	fmt.Fprintln(os.Stderr, "  watch     Watch a conversation event stream in a TUI")
	fmt.Fprintln(os.Stderr, "  version   Print version")
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.Service.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting careerloop", "version", version, "config", *configPath)

	// Open SQLite
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Create stores
	botStore := store.NewBotStore(db)
	jobStore := store.NewJobStore(db)
	activityStore := store.NewActivityStore(db)

	// Create coach engine client and conversation manager
	client := coach.NewClient(cfg.Coach.BaseURL, cfg.Coach.StreamPath, cfg.Coach.CompletePath, cfg.Coach.Token, logger)
	sched := &stream.FrameScheduler{Interval: cfg.Coach.FrameInterval}
	manager := coach.NewManager(client, sched, logger)

	// Create LLM provider for bot jobs
	chatModel, err := provider.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm provider: %w", err)
	}

	// Create bot runner
	runner := bot.NewRunner(botStore, jobStore, activityStore, chatModel, cfg.Bot, logger)

	// Recover interrupted jobs
	if err := runner.Recover(ctx); err != nil {
		logger.Error("job recovery failed", "error", err)
	}

	// Start runner worker
	go runner.Start(ctx)

	// Create and start API server
	srv := api.New(api.Config{
		Listen:                  cfg.API.Listen,
		Token:                   cfg.API.Token,
		StreamPollInterval:      cfg.API.StreamPollInterval,
		StreamHeartbeatInterval: cfg.API.StreamHeartbeatInterval,
	}, manager, botStore, jobStore, activityStore, runner, logger)

	// Signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
		select {
		case <-runner.Done():
			logger.Info("runner stopped gracefully")
		case <-time.After(10 * time.Second):
			logger.Warn("runner did not stop within 10s, exiting anyway")
		}
		return nil
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return err
		}
		return nil
	}
}
