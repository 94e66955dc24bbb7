package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/vitalsbot/core/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir = "migrations"
	readyTimeout  = 30 * time.Second
	previewFiles  = 6
)

// ErrDirty is returned when a previous migration stopped half way. The
// schema must be repaired by hand and the version forced before starting again.
var ErrDirty = errors.New("database: schema is dirty")

// migrationFile is one embedded up script, e.g. 000001_kv_documents.up.sql.
type migrationFile struct {
	version uint64
	name    string
}

func embeddedMigrations(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var files []migrationFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version prefix", name)
		}
		files = append(files, migrationFile{version: v, name: name})
	}
	slices.SortFunc(files, func(a, b migrationFile) int {
		switch {
		case a.version < b.version:
			return -1
		case a.version > b.version:
			return 1
		}
		return 0
	})
	return files, nil
}

// appliedBetween names the files with from < version <= to.
func appliedBetween(files []migrationFile, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if f.version > from && f.version <= to {
			out = append(out, f.name)
		}
	}
	return out
}

// RunMigrations brings the schema of cfg's database up to the newest
// embedded version. Postgres is given readyTimeout to accept connections.
func RunMigrations(cfg Config) error {
	if cfg.DriverName() == DriverPostgres {
		ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
		err := WaitReady(ctx, cfg)
		cancel()
		if err != nil {
			logger.MIG.Error("database not ready",
				slog.String("event", "db.wait"),
				slog.String("target", cfg.Target()),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("database not ready: %w", err)
		}
	}

	files, err := embeddedMigrations(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("init migrations for %s: %w", cfg.Target(), err)
	}
	defer func() { _, _ = m.Close() }()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		logger.MIG.Error("schema dirty",
			slog.String("event", "db.migrate"),
			slog.String("target", cfg.Target()),
			slog.Uint64("version", uint64(from)),
		)
		return fmt.Errorf("%w at version %d", ErrDirty, from)
	}

	start := time.Now()
	upErr := m.Up()
	took := logger.Took(start)
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "db.migrate"),
			slog.String("status", "fail"),
			slog.String("target", cfg.Target()),
			slog.Uint64("from_ver", uint64(from)),
			slog.Duration("duration", took),
			slog.String("err", upErr.Error()),
		)
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	to := from
	if v, _, err := m.Version(); err == nil {
		to = v
	}
	applied := appliedBetween(files, uint64(from), uint64(to))
	attrs := []any{
		slog.String("event", "db.migrate"),
		slog.String("status", "ok"),
		slog.String("driver", cfg.DriverName()),
		slog.String("target", cfg.Target()),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("count", len(applied)),
		slog.Duration("duration", took),
	}
	if preview, truncated := logger.SummarizeStrings(applied, previewFiles); preview != "" {
		attrs = append(attrs, slog.String("files", preview), slog.Bool("files_truncated", truncated))
	}
	logger.MIG.Info("migrations applied", attrs...)
	return nil
}
