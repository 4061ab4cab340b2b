// Package db stores the game catalog and the training run log in SQLite.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var ErrNotOpen = errors.New("database not initialized")

const schema = `
CREATE TABLE IF NOT EXISTS games (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    platform TEXT NOT NULL,
    year INTEGER NOT NULL,
    genre TEXT NOT NULL,
    publisher TEXT NOT NULL,
    global_sales REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_games_name ON games(name, position);
CREATE INDEX IF NOT EXISTS idx_games_sales ON games(global_sales DESC, position);
CREATE TABLE IF NOT EXISTS training_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    version TEXT NOT NULL UNIQUE,
    rows INTEGER NOT NULL,
    train_rows INTEGER NOT NULL,
    held_out_rows INTEGER NOT NULL,
    linear_r2 REAL,
    linear_rmse REAL,
    forest_r2 REAL,
    forest_rmse REAL,
    duration_ms INTEGER NOT NULL,
    bundle_dir TEXT,
    trained_at DATETIME NOT NULL
);
`

// DB wraps a SQLite handle.
type DB struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	handle, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	handle.SetMaxOpenConns(1)
	handle.SetConnMaxLifetime(time.Hour)

	if _, err := handle.Exec(schema); err != nil {
		handle.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &DB{db: handle, logger: logger}, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
