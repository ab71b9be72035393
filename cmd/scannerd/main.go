package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/doccapture/internal/async"
	"github.com/joseph-ayodele/doccapture/internal/common"
	"github.com/joseph-ayodele/doccapture/internal/extract"
	"github.com/joseph-ayodele/doccapture/internal/store"
)

// envTokenProvider reads the bearer credential from the environment at
// call time so rotated tokens are picked up without a restart.
type envTokenProvider struct{ key string }

func (p envTokenProvider) Token(_ context.Context) (string, error) {
	token := os.Getenv(p.key)
	if token == "" {
		return "", common.NewAppError("AUTH_ERROR", p.key+" is not set", common.ErrInvalidInput)
	}
	return token, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := store.OpenSQLite(cfg.Store.DBPath, logger)
	if err != nil {
		logger.Error("open store backend", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("close store backend", "error", err)
		}
	}()
	if err := backend.Ping(); err != nil {
		logger.Error("store backend health failed", "error", err)
		os.Exit(1)
	}

	uploads, err := store.NewStore(backend, cfg.Store.KeyPrefix, logger)
	if err != nil {
		logger.Error("init store", "error", err)
		os.Exit(1)
	}

	mode, err := extract.ParseMode(cfg.Extraction.Mode)
	if err != nil {
		logger.Error("parse extraction mode", "error", err)
		os.Exit(1)
	}

	tokens := envTokenProvider{key: "EXTRACTION_TOKEN"}
	var remote extract.Backend
	if cfg.Extraction.RemoteURL != "" {
		remote, err = extract.NewRemoteBackend(cfg.Extraction.RemoteURL, tokens,
			extract.WithTimeout(cfg.Extraction.Timeout),
			extract.WithMaxRetries(cfg.Extraction.MaxRetries),
			extract.WithRemoteLogger(logger),
		)
		if err != nil {
			logger.Error("init remote backend", "error", err)
			os.Exit(1)
		}
	}

	// The daemon has no on-device recognition engine; local extraction
	// only exists in app embeddings that inject one.
	coordinator, err := extract.NewCoordinator(mode, remote, nil, logger)
	if err != nil {
		logger.Error("init coordinator", "error", err)
		os.Exit(1)
	}

	engineURL := os.Getenv("PIPELINE_URL")
	if engineURL == "" {
		logger.Error("PIPELINE_URL env var is required")
		os.Exit(1)
	}
	engine, err := async.NewHTTPEngine(engineURL, tokens, logger)
	if err != nil {
		logger.Error("init pipeline engine", "error", err)
		os.Exit(1)
	}

	worker := async.NewWorker(coordinator, engine, uploads, logger,
		async.WithInterval(cfg.Store.SyncInterval),
	)
	worker.Kick()

	logger.Info("scannerd running",
		"mode", string(mode),
		"db", cfg.Store.DBPath,
		"sync_interval", cfg.Store.SyncInterval.String(),
	)

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	worker.Shutdown(shutdownCtx)
}
