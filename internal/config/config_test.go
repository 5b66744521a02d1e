package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerLoadsDefaults(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/registry.db", cfg.Store.Path)
	assert.True(t, cfg.Store.Seed)
	assert.Equal(t, float64(10), cfg.Provider.RateLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 256, cfg.Logging.AuditBuffer)
}

func TestManagerEnvironmentOverride(t *testing.T) {
	t.Setenv("SAFETY_ENGINE_SERVER_PORT", "9090")
	t.Setenv("SAFETY_ENGINE_LOGGING_LEVEL", "debug")

	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestManagerValidate(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, manager.Validate())

	manager.GetConfig().Server.Port = -1
	assert.Error(t, manager.Validate())

	require.NoError(t, manager.Reload())
	manager.GetConfig().Logging.Level = "verbose"
	assert.Error(t, manager.Validate())
}
