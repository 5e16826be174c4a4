package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 60, cfg.JWTExpMinutes)
	assert.Len(t, cfg.AESKey, 32)
	assert.Equal(t, time.Duration(0), cfg.ResyncPeriod)
	assert.Equal(t, 4, cfg.RolloutParallelism)
	assert.Empty(t, cfg.ManifestPath)
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CACHE_RESYNC_SECONDS", "300")
	t.Setenv("ROLLOUT_PARALLELISM", "2")
	t.Setenv("MANIFEST_PATH", "/etc/conn-tracer/rbac.yaml")

	cfg := New()

	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, 5*time.Minute, cfg.ResyncPeriod)
	assert.Equal(t, 2, cfg.RolloutParallelism)
	assert.Equal(t, "/etc/conn-tracer/rbac.yaml", cfg.ManifestPath)
}

func TestNewIgnoresMalformedInts(t *testing.T) {
	t.Setenv("ROLLOUT_PARALLELISM", "many")
	assert.Equal(t, 4, New().RolloutParallelism)
}
