package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"STORE_DRIVER", "DATABASE_URL", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
		"DB_SSLMODE", "SERVER_HOST", "SERVER_PORT",
		"TREE_FETCH_BATCH_SIZE", "SUMS_CACHE_ENABLED", "SUMS_CACHE_TTL", "DB_TRACE_SQL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.True(t, cfg.UsesPostgres())
	assert.Equal(t, 250, cfg.Tree.FetchBatchSize)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Database.TraceSQL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, "postgres://timesheet:@localhost:5432/timesheet?sslmode=disable", cfg.Database.URL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/ts")
	t.Setenv("SYNC_INTERVAL_SECONDS", "45")
	t.Setenv("SUMS_CACHE_TTL", "90s")
	t.Setenv("SUMS_CACHE_ENABLED", "false")
	t.Setenv("TREE_FETCH_BATCH_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, "postgres://u:p@db:5432/ts", cfg.Database.URL)
	assert.Equal(t, 45*time.Second, cfg.Buffer.SyncInterval)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 250, cfg.Tree.FetchBatchSize, "unparsable values fall back")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown driver", key: "STORE_DRIVER", val: "sqlite"},
		{name: "non-positive batch", key: "TREE_FETCH_BATCH_SIZE", val: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
