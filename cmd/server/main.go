// Package main implements the entry point for the Kuno generation engine,
// which accepts song generation requests over HTTP and runs them one at a time
// on the audio pipeline in the background.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/kunoai/kuno-engine/internal/config"
	"github.com/kunoai/kuno-engine/internal/platform/logger"
	"github.com/kunoai/kuno-engine/internal/redact"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file (default ./config.yaml when present)")
	flag.Parse()

	cfg, l, err := initializeApp(*configFile)
	if err != nil {
		fatalf("Failed to initialize application: %s", redact.Error(err))
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		l.Error("failed to build application", "error", redact.Error(err))
		fatalf("Failed to build application: %s", redact.Error(err))
	}

	if err := app.Run(ctx); err != nil {
		l.Error("application stopped with error", "error", redact.Error(err))
		fatalf("Server error: %s", redact.Error(err))
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp(configFile string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store_backend", cfg.Store.Backend,
		"pipeline_mode", cfg.Pipeline.Mode)
	if cfg.Store.DatabaseURL != "" {
		l.Debug("Database configuration", "url_present", true)
	}

	return cfg, l, nil
}

func fatalf(format string, v ...interface{}) {
	log.Fatalf(format, v...)
}
