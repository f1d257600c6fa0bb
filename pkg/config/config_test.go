package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("QUOTA_MINUTE_CEILING", "")
	t.Setenv("CORS_ALLOW_ORIGINS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 11900, cfg.Quota.MinuteCeiling)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, "0 0 1 * *", cfg.Scheduler.VisitPlanCron)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("QUOTA_MINUTE_CEILING", "9000")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("CACHE_ENABLED", "FALSE")
	t.Setenv("REDIS_PORT", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Quota.MinuteCeiling)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowOrigins)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 6379, cfg.Redis.Port)
}
