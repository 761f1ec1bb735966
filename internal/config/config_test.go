package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 1e12, cfg.Optimization.PenaltyObjective)
	assert.Equal(t, 50, cfg.Optimization.DefaultIterations)
	assert.Equal(t, 1, cfg.Optimization.DefaultBatchSize)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("OPT_PENALTY_OBJECTIVE", "1e6")
	t.Setenv("OPT_MAX_CONSECUTIVE_FAILURES", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.HTTP.Port)
	assert.Equal(t, 1e6, cfg.Optimization.PenaltyObjective)
	assert.Equal(t, 5, cfg.Optimization.MaxConsecutiveFailures)
}
