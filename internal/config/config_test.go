package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":      "postgres://localhost/camper",
		"REDIS_URL":         "redis://localhost:6379/0",
		"PORT":              "",
		"CATALOG_CACHE_TTL": "",
		"DB_AUTO_MIGRATE":   "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	require.True(t, cfg.AutoMigrate)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":                 "postgres://localhost/camper",
		"REDIS_URL":                    "redis://localhost:6379/0",
		"PORT":                         ":9090",
		"CATALOG_CACHE_TTL":            "30s",
		"DB_AUTO_MIGRATE":              "false",
		"CORS_ALLOWED_ORIGINS":         "https://crm.example.com, https://admin.example.com",
		"RATE_LIMIT_WRITES_PER_MINUTE": "10",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 30*time.Second, cfg.CatalogCacheTTL)
	require.False(t, cfg.AutoMigrate)
	require.Equal(t, []string{"https://crm.example.com", "https://admin.example.com"}, cfg.AllowedOrigins())
	require.Equal(t, int64(10), cfg.RateLimitPerMinute)
}

func TestLoadRequiresDatabase(t *testing.T) {
	_, err := LoadForTests(map[string]string{"DATABASE_URL": "", "REDIS_URL": "redis://localhost:6379/0"})
	require.EqualError(t, err, "DATABASE_URL is required")
}

func TestLoadSecurityAndPprof(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":                 "postgres://localhost/camper",
		"REDIS_URL":                    "redis://localhost:6379/0",
		"SECURITY_MAX_BODY_BYTES":      "",
		"OBS_ENABLE_PPROF":             "yes",
		"SECURE_PPROF_BASIC_AUTH_USER": " ops ",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	require.True(t, cfg.SecurityHeaders)
	require.True(t, cfg.PprofEnabled)
	require.Equal(t, "ops", cfg.PprofUser)
}
