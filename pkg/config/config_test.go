package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_SyncConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("SYNC_INTERVAL_SECONDS", "30")
	os.Setenv("SYNC_FRESHNESS_SECONDS", "90")
	os.Setenv("SYNC_LOOKAHEAD_DAYS", "7")
	defer func() {
		os.Unsetenv("SYNC_INTERVAL_SECONDS")
		os.Unsetenv("SYNC_FRESHNESS_SECONDS")
		os.Unsetenv("SYNC_LOOKAHEAD_DAYS")
	}()

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 90*time.Second, cfg.Sync.FreshnessThreshold)
	assert.Equal(t, 7*24*time.Hour, cfg.Sync.Lookahead)
}

func TestLoad_Defaults(t *testing.T) {
	// Ensure env vars are cleared
	os.Unsetenv("SYNC_INTERVAL_SECONDS")
	os.Unsetenv("SYNC_FRESHNESS_SECONDS")
	os.Unsetenv("SYNC_LOOKAHEAD_DAYS")
	os.Unsetenv("CALENDAR_PROVIDER")
	os.Unsetenv("CALENDAR_CALL_TIMEOUT_SECONDS")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 120*time.Second, cfg.Sync.FreshnessThreshold)
	assert.Equal(t, 14*24*time.Hour, cfg.Sync.Lookahead)
	assert.Equal(t, "mock", cfg.Calendar.Provider)
	assert.Equal(t, 10*time.Second, cfg.Calendar.CallTimeout)
	assert.False(t, cfg.WhatsApp.Enabled)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "scheduler",
		Password: "secret",
		Database: "scheduling",
		SSLMode:  "require",
	}

	dsn := cfg.DatabaseDSN()
	assert.Equal(t, "host=db.internal port=5433 user=scheduler password=secret dbname=scheduling sslmode=require", dsn)
}
