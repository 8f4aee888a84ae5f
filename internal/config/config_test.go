package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "snapshots", cfg.Database.Table)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.MinIntervalFloor)
	assert.Equal(t, time.Minute, cfg.Scheduler.RollupInterval)
	assert.Equal(t, time.Minute, cfg.Sources.Binance.Interval)
	assert.Equal(t, time.Hour, cfg.Sources.Protocols.Interval)
	assert.Equal(t, 100, cfg.Sources.Protocols.TopN)

	// Synthetic stays disabled unless configured.
	assert.Zero(t, cfg.Sources.Synthetic.Interval)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  port: 9090
scheduler:
  min_interval_floor: 30s
sources:
  binance:
    symbols: [solusdt]
    interval: 2m
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.MinIntervalFloor)
	assert.Equal(t, []string{"solusdt"}, cfg.Sources.Binance.Symbols)
	assert.Equal(t, 2*time.Minute, cfg.Sources.Binance.Interval)
}

func TestParseCoercesIntervalsToFloor(t *testing.T) {
	cfg, err := Parse([]byte(`
scheduler:
  min_interval_floor: 45s
sources:
  binance:
    interval: 5s
  defillama_protocols:
    interval: 1s
  synthetic:
    symbols: [BTCUSDT]
    interval: 0s
`))
	require.NoError(t, err)

	// Too-tight cadences are raised, never dropped.
	assert.Equal(t, 45*time.Second, cfg.Sources.Binance.Interval)
	assert.Equal(t, 45*time.Second, cfg.Sources.Protocols.Interval)

	// Zero means disabled and is left alone.
	assert.Zero(t, cfg.Sources.Synthetic.Interval)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "secret-pg")
	t.Setenv("REDIS_PASSWORD", "secret-redis")
	t.Setenv("SYMBOLS", " btcusdt, ethusdt ,")

	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "secret-pg", cfg.Database.Password)
	assert.Equal(t, "secret-redis", cfg.Cache.Password)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Sources.Binance.Symbols)
}

func TestNormalizeDedupesSymbols(t *testing.T) {
	cfg, err := Parse([]byte(`
sources:
  binance:
    symbols: [btcusdt, BTCUSDT, " ethusdt ", ""]
  synthetic:
    symbols: [SOLUSDT, solusdt]
    interval: 30s
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Sources.Binance.Symbols)
	assert.Equal(t, []string{"SOLUSDT"}, cfg.Sources.Synthetic.Symbols)
}

func TestParseEnvSymbolsDeduped(t *testing.T) {
	t.Setenv("SYMBOLS", "btcusdt,BTCUSDT")

	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Sources.Binance.Symbols)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"zero floor", "scheduler:\n  min_interval_floor: 0s\n"},
		{"zero backoff base", "scheduler:\n  backoff_base: 0s\n"},
		{"max below base", "scheduler:\n  backoff_base: 1m\n  backoff_max: 30s\n"},
		{"zero batch limit", "scheduler:\n  batch_limit: 0\n"},
		{"pending below batch", "scheduler:\n  batch_limit: 100\n  pending_limit: 50\n"},
		{"negative rollup interval", "scheduler:\n  rollup_interval: -1m\n"},
		{"enabled binance without symbols", "sources:\n  binance:\n    symbols: []\n"},
		{"malformed yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, User: "svc", Password: "pw",
		Database: "marketpulse", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=svc password=pw dbname=marketpulse sslmode=disable",
		d.ConnectionString())
}
