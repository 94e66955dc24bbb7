// Package bootstrap initialises logging and the databases a process needs
// before any service starts.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/vitalsbot/core/config"
	coredatabase "github.com/m3rciful/vitalsbot/core/database"
	"github.com/m3rciful/vitalsbot/core/logger"
)

// Database names one connection to open. Migrate applies the embedded
// schema after connecting; read-only upstreams leave it off.
type Database struct {
	Name    string
	Config  coredatabase.Config
	Migrate bool
}

// Options control the bootstrap pipeline.
type Options struct {
	Config    *coreconfig.Config
	Databases []Database

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result holds the connections opened by Run, keyed by Database.Name.
type Result struct {
	DBs map[string]*sqlx.DB
}

// DB returns the named connection or nil.
func (r *Result) DB(name string) *sqlx.DB {
	if r == nil {
		return nil
	}
	return r.DBs[name]
}

// Close closes every connection.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for name, db := range r.DBs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Run initialises the logger, then opens and optionally migrates each
// database in order. On failure every connection opened so far is closed.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}

	res := &Result{DBs: make(map[string]*sqlx.DB, len(opts.Databases))}
	for _, d := range opts.Databases {
		if _, dup := res.DBs[d.Name]; dup {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: database %q listed twice", d.Name)
		}
		db, err := connect(d.Config)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: database %s: %w", d.Name, err)
		}
		res.DBs[d.Name] = db

		if d.Migrate {
			if err := migrate(d.Config); err != nil {
				_ = res.Close()
				return nil, fmt.Errorf("bootstrap: migrations for %s failed: %w", d.Name, err)
			}
		}
		logger.DB.Info("database ready",
			slog.String("event", "ready"),
			slog.String("name", d.Name),
			slog.String("target", d.Config.Target()),
			slog.Bool("migrated", d.Migrate),
		)
	}
	return res, nil
}
