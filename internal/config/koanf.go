package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location
const PathEnvVar = "CONFIG_PATH"

var defaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reading-platform/config.yaml",
}

// envMappings maps environment variables onto koanf keys. Variables not listed
// here are ignored so unrelated process env never leaks into the config.
var envMappings = map[string]string{
	"port":                          "server.port",
	"server_read_timeout":           "server.read_timeout",
	"server_write_timeout":          "server.write_timeout",
	"server_shutdown_timeout":       "server.shutdown_timeout",
	"mongo_uri":                     "mongo.uri",
	"mongo_database":                "mongo.database",
	"redis_uri":                     "redis.addr",
	"redis_addr":                    "redis.addr",
	"redis_password":                "redis.password",
	"redis_db":                      "redis.db",
	"backend_url":                   "backend.base_url",
	"backend_path_prefix":           "backend.path_prefix",
	"backend_timeout":               "backend.timeout",
	"backend_breaker_failures":      "backend.breaker_failures",
	"backend_breaker_timeout":       "backend.breaker_timeout",
	"jwt_secret":                    "auth.jwt_secret",
	"token_ttl":                     "auth.token_ttl",
	"questionnaire_consent_default": "questionnaire.consent_default",
	"questionnaire_session_ttl":     "questionnaire.session_ttl",
	"questionnaire_submit_lock_ttl": "questionnaire.submit_lock_ttl",
	"questionnaire_history_limit":   "questionnaire.history_limit",
	"rate_limit_requests":           "ratelimit.requests",
	"rate_limit_window":             "ratelimit.window",
	"cors_allowed_origins":          "cors.allowed_origins",
	"log_level":                     "logging.level",
	"log_format":                    "logging.format",
}

// Load layers struct defaults, an optional YAML file and the environment, in
// that order of precedence, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma separated origins arrive from env as a single string
	if raw, ok := k.Get("cors.allowed_origins").(string); ok && raw != "" {
		if err := k.Set("cors.allowed_origins", splitList(raw)); err != nil {
			return nil, fmt.Errorf("failed to parse cors.allowed_origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Redis.Addr = strings.TrimPrefix(cfg.Redis.Addr, "redis://")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range defaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform returns "" for variables that should be skipped
func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
