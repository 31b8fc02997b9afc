package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// #region config
// Config is the process-level configuration shared by every subcommand.
type Config struct {
	DBPath          string `yaml:"db_path"`
	RedisAddr       string `yaml:"redis_addr"`
	GRPCAddr        string `yaml:"grpc_addr"`
	RulesPath       string `yaml:"rules_path"` // empty = built-in rule table
	LogLevel        string `yaml:"log_level"`
	SnapshotBackend string `yaml:"snapshot_backend"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:          "negotiation.db",
		RedisAddr:       "localhost:6379",
		GRPCAddr:        "localhost:50061",
		LogLevel:        "info",
		SnapshotBackend: BackendSQLite,
	}
}
// #endregion config

// #region load
// Load starts from Default, overlays the YAML file at path (if any), then
// applies NEGOTIATOR_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg = cfg.withEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withEnv() Config {
	c.DBPath = envOr("NEGOTIATOR_DB", c.DBPath)
	c.RedisAddr = envOr("NEGOTIATOR_REDIS_ADDR", c.RedisAddr)
	c.GRPCAddr = envOr("NEGOTIATOR_GRPC_ADDR", c.GRPCAddr)
	c.RulesPath = envOr("NEGOTIATOR_RULES", c.RulesPath)
	c.LogLevel = envOr("NEGOTIATOR_LOG_LEVEL", c.LogLevel)
	c.SnapshotBackend = strings.ToLower(envOr("NEGOTIATOR_SNAPSHOT_BACKEND", c.SnapshotBackend))
	return c
}

// Validate checks the fields that have a closed set of values.
func (c Config) Validate() error {
	switch c.SnapshotBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.SnapshotBackend)
	}
	if c.SnapshotBackend == BackendSQLite && c.DBPath == "" {
		return fmt.Errorf("sqlite backend requires db_path")
	}
	if c.SnapshotBackend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis backend requires redis_addr")
	}
	return nil
}
// #endregion load

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers
