package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, 24, cfg.StaleHours)
	assert.Equal(t, int64(500), cfg.PruneThresholdMB)
	assert.Equal(t, 10, cfg.MinKeep)
	assert.Equal(t, 300, cfg.DetectIntervalSeconds)
	assert.False(t, cfg.LoggingEnabled())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.RetentionDays)
	})

	t.Run("partial file gets defaults applied", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "cachekit.yaml")
		require.NoError(t, os.WriteFile(path, []byte("retention_days: 14\nlogging: debug\n"), 0644))

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, 14, cfg.RetentionDays)
		assert.Equal(t, 14*24*time.Hour, cfg.RetentionAge())
		assert.Equal(t, 24, cfg.StaleHours, "unset fields fall back to defaults")
		assert.True(t, cfg.LoggingEnabled())
		assert.Equal(t, "debug", cfg.LogLevel())
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "cachekit.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0644))

		_, err := Load(dir)
		assert.Error(t, err)
	})
}

func TestDurationAccessors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, 7*24*time.Hour, cfg.RetentionAge())
	assert.Equal(t, 24*time.Hour, cfg.StaleThreshold())
	assert.Equal(t, int64(500*1024*1024), cfg.PruneThresholdBytes())
	assert.Equal(t, 5*time.Minute, cfg.DetectInterval())
}
