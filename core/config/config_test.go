package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaultsAndKinds(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.Telegram.RunMode = " Polling "
	cfg.RateLimit.ExcludeUpdates = []string{" Callback", "", "MESSAGE"}

	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, []string{UpdateCallback, UpdateMessage}, cfg.RateLimit.ExcludeUpdates)
}

func TestNormalizeRejects(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.Telegram.Token = "t"
		return c
	}
	cases := map[string]struct {
		mut  func(*Config)
		want string
	}{
		"token":     {func(c *Config) { c.Telegram.Token = " " }, "telegram token is required"},
		"run mode":  {func(c *Config) { c.Telegram.RunMode = "push" }, "Telegram.RunMode: oneof"},
		"exclusion": {func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"inline"} }, "RateLimit.ExcludeUpdates[0]: oneof"},
		"negative":  {func(c *Config) { c.Sender.Workers = -1 }, "Sender.Workers: gte=0"},
		"webhook":   {func(c *Config) { c.Telegram.RunMode = RunModeWebhook }, "webhook mode needs"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			tc.mut(cfg)
			err := Normalize(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "telegram:\n  token: from-file\n  request_timeout_seconds: 7\nsender:\n  workers: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, 3, cfg.Sender.Workers)
	assert.Equal(t, int64(7), int64(cfg.Telegram.RequestTimeout().Seconds()))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)
}
