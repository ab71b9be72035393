package store

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/doccapture/internal/common"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLiteBackend persists records in a single-file sqlite database, the
// natural shape for an on-device, single-writer store.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("store.sqlite.opening", "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("store.sqlite.open_failed", "path", path, "error", err)
		return nil, common.WrapError(err, "open sqlite")
	}
	// Single writer per device session.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(kvSchema); err != nil {
		_ = db.Close()
		logger.Error("store.sqlite.schema_failed", "error", err)
		return nil, common.WrapError(err, "create kv table")
	}
	logger.Info("store.sqlite.ready", "path", path)
	return &SQLiteBackend{db: db, logger: logger}, nil
}

func (b *SQLiteBackend) Load(key string) ([]byte, error) {
	var value []byte
	err := b.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, common.WrapError(err, "load "+key)
	}
	return value, nil
}

func (b *SQLiteBackend) Save(key string, value []byte) error {
	start := time.Now()
	_, err := b.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		b.logger.Error("store.sqlite.save_failed", "key", key, "error", err)
		return common.WrapError(err, "save "+key)
	}
	b.logger.Debug("store.sqlite.saved",
		"key", key, "bytes", len(value), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (b *SQLiteBackend) Delete(key string) error {
	if _, err := b.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return common.WrapError(err, "delete "+key)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	b.logger.Info("store.sqlite.closing")
	return b.db.Close()
}

// Ping verifies the database is reachable, for startup health checks.
func (b *SQLiteBackend) Ping() error {
	return b.db.Ping()
}
