package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oncallhq/mattersend/internal/alias"
	"github.com/oncallhq/mattersend/internal/config"
	"github.com/oncallhq/mattersend/internal/dispatch"
	"github.com/oncallhq/mattersend/internal/metrics"
	"github.com/oncallhq/mattersend/internal/web"
)

func main() {
	configPath := flag.String("config", "mattersend.yml", "path to the configuration file")
	flag.Parse()

	// --- 1. Load Config ---
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// --- 2. Setup Logger ---
	setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("starting mattersend", "bind", cfg.Listen, "instances", len(cfg.Instances))
	if cfg.APITokenHash == "" {
		slog.Warn("api_token_hash is empty, API authentication is disabled")
	}

	// --- 3. Open Alias Directory ---
	aliases, err := alias.Open(cfg.AliasDB)
	if err != nil {
		slog.Error("failed to open alias store", "error", err)
		os.Exit(1)
	}
	defer aliases.Close()

	// --- 4. Metrics ---
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// --- 5. Dispatcher & HTTP Server ---
	dispatcher := dispatch.New(cfg, aliases)
	router := web.NewRouter(cfg, dispatcher, aliases, registry)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}

	go func() {
		slog.Info("mattersend is running", "address", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// --- 6. Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received shutdown signal", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}

	slog.Info("mattersend stopped gracefully")
}

func setupLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	slog.SetDefault(slog.New(handler))
}
