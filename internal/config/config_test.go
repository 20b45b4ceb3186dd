package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("WORKFLOW_MAX_CAPACITY", "")
	t.Setenv("WORKFLOW_ASSIGNMENT_POLICY", "")
	t.Setenv("WORKFLOW_RULE_CACHE_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Workflow.MaxCapacity)
	assert.Equal(t, PolicyLeastLoaded, cfg.Workflow.AssignmentPolicy)
	assert.Equal(t, 30*time.Second, cfg.Workflow.RuleCacheTTL)
	assert.Empty(t, cfg.Postgres.DSN)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKFLOW_MAX_CAPACITY", "20")
	t.Setenv("WORKFLOW_ASSIGNMENT_POLICY", PolicyRoundRobin)
	t.Setenv("STORE_OPERATION_TIMEOUT", "750ms")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Workflow.MaxCapacity)
	assert.Equal(t, PolicyRoundRobin, cfg.Workflow.AssignmentPolicy)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.OperationTimeout)
	assert.Equal(t, "127.0.0.1:9000", cfg.App.Addr())
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("WORKFLOW_ASSIGNMENT_POLICY", "random")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("SOME_INT", "nope")
	t.Setenv("SOME_BOOL", "maybe")
	t.Setenv("SOME_DURATION", "soon")

	assert.Equal(t, 7, getEnvAsInt("SOME_INT", 7))
	assert.True(t, getEnvAsBool("SOME_BOOL", true))
	assert.Equal(t, time.Minute, getEnvAsDuration("SOME_DURATION", time.Minute))
}
