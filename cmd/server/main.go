/*
main.go - Dashboard server entry point

PURPOSE:
  Initializes and starts the fund returns dashboard API. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (YAML file + FUND_* environment)
  2. Build the zap logger
  3. Open the SQLite store (schema ensured on open)
  4. Build the chart renderer, views and annotator
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config   Config file path (default: $FUND_CONFIG or config.yaml)
  -env-only Skip the config file; defaults plus environment only

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with a config file
  ./server -config=./config.yaml

  # Run from environment only, in-memory database
  FUND_DB_PATH=":memory:" ./server -env-only

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/fund-returns/annotate"
	"github.com/warp/fund-returns/api"
	"github.com/warp/fund-returns/config"
	"github.com/warp/fund-returns/logging"
	"github.com/warp/fund-returns/report"
	"github.com/warp/fund-returns/store/sqlite"
)

func main() {
	defaultPath := os.Getenv("FUND_CONFIG")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	envOnlyDefault := false
	if raw := os.Getenv("FUND_ENV_ONLY"); raw != "" {
		envOnlyDefault = strings.EqualFold(raw, "true") || raw == "1"
	}

	// Flags
	cfgPath := flag.String("config", defaultPath, "Config file path")
	envOnly := flag.Bool("env-only", envOnlyDefault, "Ignore the config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.DB)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.DB.Path), zap.Error(err))
	}
	defer store.Close()

	renderer, err := report.NewRenderer(cfg.Report)
	if err != nil {
		logger.Fatal("failed to load chart font", zap.String("font_path", cfg.Report.FontPath), zap.Error(err))
	}
	if !renderer.HasHangul() {
		logger.Warn("chart font has no Hangul glyphs; Korean labels will not render, set report.font_path",
			zap.String("font", renderer.FontSource()))
	}

	annotator := annotate.New(cfg.Annotator)
	if _, disabled := annotator.(annotate.Disabled); disabled {
		logger.Warn("annotator disabled: no API key configured")
	}

	handler := api.NewHandler(store, report.NewViews(store, renderer), annotator, api.Options{
		Columns:           cfg.Ingest.Columns,
		AdminPassword:     cfg.Auth.AdminPassword,
		AnnotatorPassword: cfg.Annotator.Password,
		Logger:            logger,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AccessPassword: cfg.Auth.AccessPassword,
	})

	server := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.String("db", cfg.DB.Path),
			zap.String("driver", cfg.DB.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}
