package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/doccapture/internal/common"
	"github.com/joseph-ayodele/doccapture/internal/export"
	"github.com/joseph-ayodele/doccapture/internal/store"
)

// exporthist dumps the local scan history to an XLSX file.
func main() {
	out := flag.String("o", "scan-history.xlsx", "output file path")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()

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

	uploads, err := store.NewStore(backend, cfg.Store.KeyPrefix, logger)
	if err != nil {
		logger.Error("init store", "error", err)
		os.Exit(1)
	}

	svc := export.NewService(uploads, logger)
	data, err := svc.ExportHistoryXLSX()
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("write output", "error", err)
		os.Exit(1)
	}
	logger.Info("history exported", "path", *out, "bytes", len(data))
}
