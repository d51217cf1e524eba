package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightd/internal/config"
	"github.com/fyrsmithlabs/insightd/internal/insight"
)

func TestApplyFlagOverrides(t *testing.T) {
	t.Cleanup(func() {
		dataDir = ""
		logLevel = ""
	})

	t.Run("data dir re-roots store and index", func(t *testing.T) {
		dataDir = filepath.Join("/tmp", "insightd-test")
		logLevel = ""

		cfg := &config.Config{}
		cfg.ApplyDefaults()
		applyFlagOverrides(cfg)

		assert.Equal(t, filepath.Join("/tmp", "insightd-test", "conversations.db"), cfg.Store.Path)
		assert.Equal(t, filepath.Join("/tmp", "insightd-test", "knowledge"), cfg.VectorStore.Chromem.Path)
	})

	t.Run("log level flag wins over config", func(t *testing.T) {
		dataDir = ""
		logLevel = "debug"

		cfg := &config.Config{}
		cfg.ApplyDefaults()
		applyFlagOverrides(cfg)

		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("unset flags leave config alone", func(t *testing.T) {
		dataDir = ""
		logLevel = ""

		cfg := &config.Config{}
		cfg.ApplyDefaults()
		want := cfg.Store.Path
		applyFlagOverrides(cfg)

		assert.Equal(t, want, cfg.Store.Path)
		assert.Equal(t, "info", cfg.Log.Level)
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("builds logger at configured level", func(t *testing.T) {
		logger, err := newLogger(config.LogConfig{Level: "warn"})
		require.NoError(t, err)

		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("development encoder", func(t *testing.T) {
		logger, err := newLogger(config.LogConfig{Level: "debug", Development: true})
		require.NoError(t, err)

		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := newLogger(config.LogConfig{Level: "chatty"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing log level")
	})
}

func TestDegradeError(t *testing.T) {
	assert.EqualError(t, degradeError(insight.StatusDisabled), "insights are disabled")
	assert.Contains(t, degradeError(insight.StatusError).Error(), "unavailable")
}
