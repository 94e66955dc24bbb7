// Package cmd runs the bot next to its auxiliary services until a signal
// arrives or one of them fails.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/vitalsbot/core/logger"
	coretelegram "github.com/m3rciful/vitalsbot/core/telegram"
)

// Service is a long-running component that returns when ctx is done.
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// Options describe what Run supervises.
type Options struct {
	Telegram coretelegram.RunOptions
	Services []Service

	// Signals default to SIGINT and SIGTERM.
	Signals []os.Signal

	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	ShutdownLogger func() error
}

// Run starts the bot and every service in one errgroup. The first failure
// cancels the rest; a signal or cancelled parent ends all of them cleanly.
func Run(parent context.Context, opts Options) (err error) {
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if serr := shutdownLogger(); serr != nil {
			err = errors.Join(err, fmt.Errorf("cmd: logger shutdown: %w", serr))
		}
	}()

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(parent, signals...)
	defer stop()

	runTelegram := opts.RunTelegram
	if runTelegram == nil {
		runTelegram = coretelegram.RunTelegram
	}

	startedAt := time.Now()
	tg := opts.Telegram
	prevStart := tg.OnStart
	tg.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}
	prevStop := tg.OnStop
	tg.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := runTelegram(gctx, tg); err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		return nil
	})
	for _, svc := range opts.Services {
		if svc.Run == nil {
			continue
		}
		g.Go(func() error {
			if err := svc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(gctx, "app", "service.fail",
					slog.String("service", svc.Name),
					slog.String("err", err.Error()),
				)
				return fmt.Errorf("%s: %w", svc.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
