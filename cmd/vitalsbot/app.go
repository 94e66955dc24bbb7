package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/m3rciful/vitalsbot/core/bootstrap"
	corecmd "github.com/m3rciful/vitalsbot/core/cmd"
	coreconfig "github.com/m3rciful/vitalsbot/core/config"
	"github.com/m3rciful/vitalsbot/core/logger"
	tg "github.com/m3rciful/vitalsbot/core/telegram"
	"github.com/m3rciful/vitalsbot/internal/bot"
	"github.com/m3rciful/vitalsbot/internal/config"
	"github.com/m3rciful/vitalsbot/internal/conversation"
	"github.com/m3rciful/vitalsbot/internal/identity"
	"github.com/m3rciful/vitalsbot/internal/kv"
	"github.com/m3rciful/vitalsbot/internal/metrics"
	"github.com/m3rciful/vitalsbot/internal/remote"
	"github.com/m3rciful/vitalsbot/internal/telemetry"
	"github.com/m3rciful/vitalsbot/internal/timers"
)

const (
	dbRemote = "remote"
	dbStore  = "store"
)

func databases(cfg *config.Config, withRemote bool) []bootstrap.Database {
	var dbs []bootstrap.Database
	if withRemote {
		dbs = append(dbs, bootstrap.Database{Name: dbRemote, Config: cfg.Remote.Database()})
	}
	if cfg.Store.UsesDatabase() {
		dbs = append(dbs, bootstrap.Database{Name: dbStore, Config: cfg.Store.Database, Migrate: true})
	}
	return dbs
}

func openStore(cfg *config.Config, res *bootstrap.Result) (kv.Store, error) {
	return kv.Open(kv.Options{
		Backend: cfg.Store.Backend,
		Dir:     cfg.Store.Dir,
		DB:      res.DB(dbStore),
	})
}

func serve(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:    cfg.CoreConfig(),
		Databases: databases(cfg, true),
	})
	if err != nil {
		return err
	}
	defer func() { _ = res.Close() }()

	store, err := openStore(cfg, res)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tables, err := cfg.Telemetry.TableMap()
	if err != nil {
		return err
	}

	client := remote.New(res.DB(dbRemote), remote.Options{
		ProfilesTable: cfg.Remote.ProfilesTable,
		QueryTimeout:  cfg.Remote.QueryTimeout(),
		BreakerName:   cfg.Remote.BreakerName,
	})
	fetcher := telemetry.NewFetcher(client, telemetry.Options{
		Tables:        tables,
		RatePerSecond: cfg.Telemetry.RatePerSecond,
		Burst:         cfg.Telemetry.Burst,
		Origin:        "interactive",
	})
	fireFetcher := timerFetcher(cfg.Telemetry, fetcher)

	identities := identity.New(store)
	timerStore := timers.NewStore(store)
	sender := &bot.Sender{}

	sched := timers.NewScheduler(timerStore, &timers.Callback{
		Identities: identities,
		Profiles:   client,
		Fetcher:    fireFetcher,
		Sender:     sender,
		Store:      timerStore,
	}, timers.SystemClock{})

	engine := conversation.New(conversation.Deps{
		Identities: identities,
		Profiles:   client,
		Fetcher:    fetcher,
		Timers:     sched,
	})
	b := bot.New(engine, sched)

	reg := tg.NewRegistry()
	if err := b.Register(reg); err != nil {
		return err
	}

	core := cfg.CoreConfig()
	opts := corecmd.Options{
		Telegram: tg.RunOptions{
			Config:      core,
			Registry:    reg,
			Routes:      func(rt tg.Runtime) []tg.Route { return b.Routes(rt.Registry, core.Telegram.AdminID) },
			Middlewares: tg.DefaultMiddlewares(core, b.RateLimited()),
			OnStart: func(ctx context.Context, rt tg.Runtime) error {
				sender.Attach(rt.Bot)
				sched.Start(ctx)
				n, err := sched.Restore(ctx)
				if err != nil {
					return fmt.Errorf("restore timers: %w", err)
				}
				logger.Info(ctx, "app", "timers.restore", slog.Int("count", n))
				return nil
			},
			OnStop: func(ctx context.Context, _ tg.Runtime) error {
				return sched.Stop(ctx)
			},
		},
	}
	if cfg.Metrics.Listen != "" {
		checks := map[string]metrics.HealthFunc{dbRemote: client.Ping}
		if db := res.DB(dbStore); db != nil {
			checks[dbStore] = db.PingContext
		}
		opts.Services = append(opts.Services, corecmd.Service{
			Name: "metrics",
			Run: func(ctx context.Context) error {
				return metrics.Serve(ctx, cfg.Metrics.Listen, checks)
			},
		})
	}

	err = corecmd.Run(ctx, opts)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// listTimers prints the stored timers. It reads the store directly and never
// contacts the remote database or Telegram.
func listTimers(ctx context.Context, path string, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Databases:  databases(cfg, false),
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
	if err != nil {
		return err
	}
	defer func() { _ = res.Close() }()

	store, err := openStore(cfg, res)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	all, err := timers.NewStore(store).All(ctx)
	if err != nil {
		return err
	}
	ids, err := identity.New(store).All(ctx)
	if err != nil {
		return err
	}

	sids := make([]int64, 0, len(all))
	for sid := range all {
		sids = append(sids, sid)
	}
	sort.Slice(sids, func(i, j int) bool { return sids[i] < sids[j] })

	now := time.Now()
	for _, sid := range sids {
		rec := all[sid]
		due := "expired"
		if next, ok := timers.Next(rec, now); ok {
			due = next.UTC().Format(time.RFC3339)
		}
		repeat := "once"
		if rec.Kind == timers.KindPeriodic {
			repeat = "every " + rec.Interval().String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\tnext %s\n",
			sid, ids[sid], rec.Kind, rec.Query.Dataset, repeat, due)
	}
	fmt.Fprintf(w, "%d timer(s)\n", len(sids))
	return nil
}

// timerFetcher is the fetcher timer fires use. Without a timer rate it
// shares the interactive limiter, so both draw from one budget.
func timerFetcher(cfg config.TelemetryConfig, interactive *telemetry.Fetcher) *telemetry.Fetcher {
	if cfg.SharedBudget() {
		return interactive.WithLimiter(nil, "timer")
	}
	return interactive.WithLimiter(telemetry.NewLimiter(cfg.TimerRatePerSecond, cfg.TimerBurst), "timer")
}
