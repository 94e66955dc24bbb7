package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coretelegram "github.com/m3rciful/vitalsbot/core/telegram"
)

func waitTelegram(started chan<- struct{}) func(ctx context.Context, opts coretelegram.RunOptions) error {
	return func(ctx context.Context, opts coretelegram.RunOptions) error {
		if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
			return err
		}
		close(started)
		<-ctx.Done()
		return opts.OnStop(context.WithoutCancel(ctx), coretelegram.Runtime{})
	}
}

func TestRunStopsEverythingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	stopped := false
	svcDone := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Options{
			Telegram: coretelegram.RunOptions{
				OnStop: func(context.Context, coretelegram.Runtime) error { stopped = true; return nil },
			},
			Services: []Service{{Name: "metrics", Run: func(ctx context.Context) error {
				<-ctx.Done()
				close(svcDone)
				return nil
			}}},
			RunTelegram:    waitTelegram(started),
			ShutdownLogger: func() error { return nil },
		})
	}()

	<-started
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
	<-svcDone
	assert.True(t, stopped)
}

func TestRunServiceFailureCancelsBot(t *testing.T) {
	boom := errors.New("listen: address in use")
	err := Run(context.Background(), Options{
		Services: []Service{{Name: "metrics", Run: func(context.Context) error { return boom }}},
		RunTelegram: func(ctx context.Context, _ coretelegram.RunOptions) error {
			<-ctx.Done()
			return nil
		},
		ShutdownLogger: func() error { return nil },
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "metrics")
}

func TestRunReportsLoggerShutdownError(t *testing.T) {
	err := Run(context.Background(), Options{
		RunTelegram:    func(context.Context, coretelegram.RunOptions) error { return nil },
		ShutdownLogger: func() error { return errors.New("flush failed") },
	})
	assert.ErrorContains(t, err, "flush failed")
}
