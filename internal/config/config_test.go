package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 0.8, cfg.Trading.PayoutRate)
	assert.Equal(t, time.Second, cfg.Trading.SweepInterval)
	assert.Equal(t, 1000.0, cfg.Trading.StartingBalance)
	assert.Equal(t, 3*time.Second, cfg.Simulator.TickInterval)
	assert.Equal(t, int32(4), cfg.Simulator.Precision)
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, "trading:\n  sweep_interval: 250ms\nsimulator:\n  tick_interval: 5s\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Trading.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.Simulator.TickInterval)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: postgres\n")

	t.Setenv("DB_DRIVER", "SQLITE")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("TRADING_PAYOUT_RATE", "0.75")
	t.Setenv("SWEEP_INTERVAL", "2s")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 0.75, cfg.Trading.PayoutRate)
	assert.Equal(t, 2*time.Second, cfg.Trading.SweepInterval)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadTradingRules(t *testing.T) {
	cfg := Default()
	cfg.Trading.PayoutRate = -1
	cfg.Trading.MaxAmount = 0.5
	cfg.Database.Driver = "mysql"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payout_rate")
	assert.Contains(t, err.Error(), "max_amount")
	assert.Contains(t, err.Error(), "database.driver")
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", db.DSN())
}
