package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/vitalsbot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyInterval  = 2 * time.Second
)

// sqlite allows one writer; the pool is pinned to a single connection.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA busy_timeout=5000;",
}

// Connect opens and pings the database described by cfg and sizes its pool.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return ConnectContext(ctx, cfg)
}

// ConnectContext is Connect bounded by ctx.
func ConnectContext(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	driver := cfg.DriverName()
	if driver == DriverSQLite && cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("db prepare dir: %w", err)
		}
	}

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driver, cfg.ConnString())
	if err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("status", "fail"),
			slog.String("driver", driver),
			slog.String("target", cfg.Target()),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect %s: %w", cfg.Target(), err)
	}

	pool := cfg.MaxConnections
	if driver == DriverSQLite {
		pool = 1
		for _, p := range sqlitePragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("db pragma %q: %w", p, err)
			}
		}
	}
	if pool > 0 {
		db.SetMaxOpenConns(pool)
		db.SetMaxIdleConns(pool)
	}

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("status", "ok"),
		slog.String("driver", driver),
		slog.String("target", cfg.Target()),
		slog.Int("pool_open", pool),
		slog.Duration("duration", logger.Took(start)),
	)
	return db, nil
}

// WaitReady pings cfg's database every readyInterval until it answers or ctx ends.
func WaitReady(ctx context.Context, cfg Config) error {
	db, err := sqlx.Open(cfg.DriverName(), cfg.ConnString())
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(readyInterval)
	defer ticker.Stop()
	attempts := 0
	for {
		attempts++
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		logger.DB.Debug("db not ready",
			slog.String("event", "db.wait"),
			slog.String("target", cfg.Target()),
			slog.Int("attempts", attempts),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("after %d attempts: %w", attempts, err)
		case <-ticker.C:
		}
	}
}
