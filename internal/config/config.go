package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds all gateway configuration
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Mongo         MongoConfig         `koanf:"mongo"`
	Redis         RedisConfig         `koanf:"redis"`
	Backend       BackendConfig       `koanf:"backend"`
	Auth          AuthConfig          `koanf:"auth"`
	Questionnaire QuestionnaireConfig `koanf:"questionnaire"`
	RateLimit     RateLimitConfig     `koanf:"ratelimit"`
	CORS          CORSConfig          `koanf:"cors"`
	Logging       LoggingConfig       `koanf:"logging"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// BackendConfig describes the external recommendation backend
type BackendConfig struct {
	BaseURL    string        `koanf:"base_url"`
	PathPrefix string        `koanf:"path_prefix"`
	Timeout    time.Duration `koanf:"timeout"`

	// Consecutive failures before the circuit opens, and how long it stays open
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

// QuestionnaireConfig controls the wizard sessions.
//
// ConsentDefault is the initial state of the data-processing consent flag.
// It starts checked to match the existing product; integrators who need an
// explicit opt-in should set it to false.
type QuestionnaireConfig struct {
	ConsentDefault bool          `koanf:"consent_default"`
	SessionTTL     time.Duration `koanf:"session_ttl"`
	SubmitLockTTL  time.Duration `koanf:"submit_lock_ttl"`
	HistoryLimit   int           `koanf:"history_limit"`
}

// RateLimitConfig applies per client IP to login and write-heavy endpoints
type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "reading_platform",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Backend: BackendConfig{
			BaseURL:         "http://localhost:8000",
			PathPrefix:      "/api",
			Timeout:         30 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-change-me",
			TokenTTL:  24 * time.Hour,
		},
		Questionnaire: QuestionnaireConfig{
			ConsentDefault: true,
			SessionTTL:     7 * 24 * time.Hour,
			SubmitLockTTL:  time.Minute,
			HistoryLimit:   20,
		},
		RateLimit: RateLimitConfig{
			Requests: 30,
			Window:   time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate rejects configurations the gateway cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("mongo.uri is required"))
	}
	if c.Mongo.Database == "" {
		errs = append(errs, errors.New("mongo.database is required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url %q is not an absolute URL", c.Backend.BaseURL))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Questionnaire.HistoryLimit <= 0 {
		errs = append(errs, errors.New("questionnaire.history_limit must be positive"))
	}
	if c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("ratelimit.requests must be positive"))
	}

	durations := map[string]time.Duration{
		"server.read_timeout":           c.Server.ReadTimeout,
		"server.write_timeout":          c.Server.WriteTimeout,
		"server.shutdown_timeout":       c.Server.ShutdownTimeout,
		"backend.timeout":               c.Backend.Timeout,
		"backend.breaker_timeout":       c.Backend.BreakerTimeout,
		"auth.token_ttl":                c.Auth.TokenTTL,
		"questionnaire.session_ttl":     c.Questionnaire.SessionTTL,
		"questionnaire.submit_lock_ttl": c.Questionnaire.SubmitLockTTL,
		"ratelimit.window":              c.RateLimit.Window,
	}
	for key, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	// the lock has to outlive the slowest submit
	if c.Questionnaire.SubmitLockTTL <= c.Backend.Timeout {
		errs = append(errs, fmt.Errorf("questionnaire.submit_lock_ttl %s must exceed backend.timeout %s",
			c.Questionnaire.SubmitLockTTL, c.Backend.Timeout))
	}

	return errors.Join(errs...)
}
