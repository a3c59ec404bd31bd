package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/generate"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/notify"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/observability"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/queue"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/server"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/settings"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/store"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/stream"
)

var logLevel string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "usecased",
	Short: "usecased is the AI use-case generation queue server",
	Long:  "Job orchestration server for AI use-case portfolio generation, backed by embedded SQLite.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the usecased server",
	RunE:  runServe,
}

var (
	bindAddr        string
	dataDir         string
	configPath      string
	devMode         bool
	shutdownTimeout time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	serveCmd.Flags().StringVar(&bindAddr, "bind", "", "HTTP server bind address (overrides config)")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "data", "Directory for database and stream files")
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Use placeholder generators instead of real model calls")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful HTTP shutdown timeout (e.g. 500ms, 5s)")

	rootCmd.AddCommand(serveCmd)
}

func setupLogging() {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := settings.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	file := cfg.All()
	if bindAddr == "" {
		bindAddr = file.Server.Addr
	}

	slog.Info("starting usecased server",
		"bind", bindAddr,
		"data_dir", dataDir,
		"config", configPath,
		"dev_mode", devMode,
		"concurrency", file.Queue.Concurrency,
		"processing_interval", file.Queue.ProcessingInterval,
		"redis", file.Redis.Addr,
		"tracing_enabled", file.Tracing.Enabled,
	)

	otelShutdown, err := observability.InitTracer(file.Tracing.Enabled, "usecased", file.Tracing.Endpoint)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("otel shutdown error", "error", err)
		}
	}()

	db, err := store.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	s := store.NewStore(db)

	streams, err := stream.Open(filepath.Join(dataDir, "streams"))
	if err != nil {
		return fmt.Errorf("open stream log: %w", err)
	}
	defer streams.Close()

	hub := notify.NewHub()
	var notifier notify.Publisher = hub
	if file.Redis.Addr != "" {
		redisPub, err := notify.NewRedisPublisher(file.Redis.Addr, file.Redis.Password, file.Redis.DB, "usecased")
		if err != nil {
			return fmt.Errorf("connect redis publisher: %w", err)
		}
		defer redisPub.Close()
		notifier = notify.Fanout{hub, redisPub}
	}

	gens := generate.Registry{}
	if devMode {
		gens = generate.NewDevRegistry(s)
	}

	manager := queue.New(queue.Options{
		Store:      s,
		Generators: gens,
		Notifier:   notifier,
		Streams:    streams,
		Settings:   cfg,
	})

	srv := server.New(server.Options{
		Manager:  manager,
		Hub:      hub,
		Streams:  streams,
		BindAddr: bindAddr,
	})
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("usecased server ready", "bind", bindAddr)

	// Reload settings on SIGHUP; stop on SIGTERM/SIGINT.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	for {
		sig := <-sigCh
		if sig == syscall.SIGHUP {
			if err := manager.ReloadConcurrencySettings(); err != nil {
				slog.Error("settings reload failed", "error", err)
			}
			continue
		}
		slog.Info("received shutdown signal", "signal", sig)
		break
	}

	slog.Info("stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}

	slog.Info("draining in-flight jobs")
	manager.Pause()
	if !manager.Drain(shutdownTimeout) {
		slog.Warn("drain timed out with jobs still in flight")
	}

	slog.Info("usecased server stopped")
	return nil
}
