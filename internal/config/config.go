// Package config loads runtime settings from a YAML file with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskforge/taskforge/pkg/logger"
)

// Duration parses Go duration strings from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config keeps runtime settings for the server.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Redis    RedisConfig          `yaml:"redis"`
	Auth     AuthConfig           `yaml:"auth"`
	Logging  logger.LoggingConfig `yaml:"logging"`
	Audit    AuditConfig          `yaml:"audit"`
	Sweep    SweepConfig          `yaml:"sweep"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
	RateLimitRPS    int      `yaml:"rate_limit_rps"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
}

// DatabaseConfig selects the persistence backend. An empty DSN runs on the
// in-memory store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig enables the Redis token store when Addr is set; otherwise
// issuance records live in the primary store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	Secret   string   `yaml:"secret"`
	TokenTTL Duration `yaml:"token_ttl"`
}

type AuditConfig struct {
	File string `yaml:"file"`
	Max  int    `yaml:"max"`
}

type SweepConfig struct {
	Interval Duration `yaml:"interval"`
}

// Load reads the YAML file at path (optional), applies environment
// overrides, then validates. Missing file with path == "" is not an error.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.Auth.Secret == "" {
		return cfg, fmt.Errorf("auth secret is required (auth.secret or TASKFORGE_AUTH_SECRET)")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := env("TASKFORGE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := env("TASKFORGE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := env("TASKFORGE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := env("TASKFORGE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := env("TASKFORGE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := env("TASKFORGE_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := env("TASKFORGE_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = Duration(d)
		}
	}
	if v := env("TASKFORGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := env("TASKFORGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := env("TASKFORGE_CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		cfg.Server.CORSOrigins = cfg.Server.CORSOrigins[:0]
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, trimmed)
			}
		}
	}
	if v := env("TASKFORGE_RATE_LIMIT_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitRPS = n
		}
	}
	if v := env("TASKFORGE_AUDIT_FILE"); v != "" {
		cfg.Audit.File = v
	}
	if v := env("TASKFORGE_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sweep.Interval = Duration(d)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = Duration(24 * time.Hour)
	}
	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = Duration(time.Hour)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
