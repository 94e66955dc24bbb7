package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/vitalsbot/core/config"
	"github.com/m3rciful/vitalsbot/internal/telemetry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimal = `
telegram:
  token: "123:abc"
remote:
  dsn: "postgres://ro@remote:5432/vitals?sslmode=disable"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "data", cfg.Store.Dir)
	assert.False(t, cfg.Store.UsesDatabase())
	assert.Equal(t, float64(telemetry.DefaultRatePerSecond), cfg.Telemetry.RatePerSecond)
	assert.Zero(t, cfg.Telemetry.TimerRatePerSecond)
	assert.True(t, cfg.Telemetry.SharedBudget())
	assert.Equal(t, 10, cfg.Remote.QueryTimeoutSeconds)
	assert.Equal(t, "postgres", cfg.Remote.Database().DriverName())
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadFullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
telegram:
  token: "123:abc"
  admin_id: 42
store:
  backend: sqlite
  dir: /var/lib/vitalsbot
remote:
  dsn: "postgres://ro@remote/vitals"
  profiles_table: profiles
telemetry:
  tables:
    hourly: follow_hour_v2
  rate_per_second: 8
  timer_rate_per_second: 2
metrics:
  listen: "127.0.0.1:9090"
`))
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.True(t, cfg.Store.UsesDatabase())
	assert.Equal(t, "sqlite", cfg.Store.Database.DriverName())
	assert.Equal(t, "/var/lib/vitalsbot/vitalsbot.db", cfg.Store.Database.Path)
	assert.Equal(t, "profiles", cfg.Remote.ProfilesTable)
	assert.Equal(t, 2.0, cfg.Telemetry.TimerRatePerSecond)
	assert.False(t, cfg.Telemetry.SharedBudget())
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Listen)

	tables, err := cfg.Telemetry.TableMap()
	require.NoError(t, err)
	assert.Equal(t, "follow_hour_v2", tables.Table(telemetry.DatasetHourly))
	assert.Equal(t, "onetest", tables.Table(telemetry.DatasetDaily))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "999:env")
	t.Setenv("REMOTE_DSN", "postgres://env@remote/vitals")
	t.Setenv("TELEMETRY_RATE_PER_SECOND", "5")
	t.Setenv("METRICS_LISTEN", ":9100")

	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, "999:env", cfg.Telegram.Token)
	assert.Equal(t, "postgres://env@remote/vitals", cfg.Remote.DSN)
	assert.Equal(t, 5.0, cfg.Telemetry.RatePerSecond)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
}

func TestMissingFileFallsBackToEnvironment(t *testing.T) {
	t.Setenv("BOT_TOKEN", "1:x")
	t.Setenv("REMOTE_DSN", "postgres://env@remote/vitals")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "1:x", cfg.Telegram.Token)
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no token",
			body: "remote:\n  dsn: x\n",
			want: "telegram token is required",
		},
		{
			name: "no remote dsn",
			body: "telegram:\n  token: t\n",
			want: "Remote.DSN: required",
		},
		{
			name: "unknown backend",
			body: minimal + "store:\n  backend: redis\n",
			want: "Store.Backend: oneof",
		},
		{
			name: "bad metrics address",
			body: minimal + "metrics:\n  listen: nowhere\n",
			want: "Metrics.Listen: hostname_port",
		},
		{
			name: "unknown dataset",
			body: minimal + "telemetry:\n  tables:\n    weekly: w\n",
			want: `unknown dataset "weekly"`,
		},
		{
			name: "postgres store without target",
			body: minimal + "store:\n  backend: postgres\n",
			want: "store.database needs dsn or host",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
