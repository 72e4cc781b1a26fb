package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnvVar, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/api", cfg.Backend.PathPrefix)
	assert.True(t, cfg.Questionnaire.ConsentDefault)
	assert.Equal(t, 20, cfg.Questionnaire.HistoryLimit)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	t.Setenv("PORT", "9000")
	t.Setenv("BACKEND_URL", "http://backend.internal:8000")
	t.Setenv("REDIS_URI", "redis://cache:6379")
	t.Setenv("QUESTIONNAIRE_CONSENT_DEFAULT", "false")
	t.Setenv("BACKEND_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "http://backend.internal:8000", cfg.Backend.BaseURL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.False(t, cfg.Questionnaire.ConsentDefault)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7000
questionnaire:
  history_limit: 5
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(PathEnvVar, path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Questionnaire.HistoryLimit)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"relative backend url", func(c *Config) { c.Backend.BaseURL = "/api" }},
		{"empty mongo uri", func(c *Config) { c.Mongo.URI = "" }},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"zero session ttl", func(c *Config) { c.Questionnaire.SessionTTL = 0 }},
		{"negative backend timeout", func(c *Config) { c.Backend.Timeout = -time.Second }},
		{"submit lock shorter than backend timeout", func(c *Config) {
			c.Backend.Timeout = time.Minute
			c.Questionnaire.SubmitLockTTL = 30 * time.Second
		}},
		{"submit lock equal to backend timeout", func(c *Config) {
			c.Questionnaire.SubmitLockTTL = c.Backend.Timeout
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
