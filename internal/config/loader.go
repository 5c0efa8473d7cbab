package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "concord.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CONCORD_PORT")
	setString(&cfg.Server.CORSOrigin, "CONCORD_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CONCORD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CONCORD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CONCORD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CONCORD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CONCORD_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "CONCORD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CONCORD_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "CONCORD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Cooldown, "CONCORD_BREAKER_COOLDOWN")
	setInt(&cfg.Ledger.AppendAttempts, "CONCORD_LEDGER_APPEND_ATTEMPTS")
	setDuration(&cfg.Ledger.AppendBackoff, "CONCORD_LEDGER_APPEND_BACKOFF")
	setInt64(&cfg.Cache.MaxSizeMB, "CONCORD_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.SnapshotTTL, "CONCORD_CACHE_SNAPSHOT_TTL")
	setString(&cfg.Evaluator.Provider, "CONCORD_EVALUATOR")
	setString(&cfg.Orchestrator.DefaultPattern, "CONCORD_ORCH_DEFAULT_PATTERN")
	setInt(&cfg.Orchestrator.WorkerPoolSize, "CONCORD_ORCH_POOL_SIZE")
	setInt(&cfg.Orchestrator.GroupMaxRounds, "CONCORD_ORCH_GROUP_MAX_ROUNDS")
	setInt(&cfg.Orchestrator.HandoffMaxHops, "CONCORD_ORCH_HANDOFF_MAX_HOPS")
	setFloat64(&cfg.Orchestrator.StableEpsilon, "CONCORD_ORCH_STABLE_EPSILON")
	setInt(&cfg.Orchestrator.DynamicSubset, "CONCORD_ORCH_DYNAMIC_SUBSET")
	setString(&cfg.Notify.Slack.WebhookURL, "CONCORD_SLACK_WEBHOOK_URL")
}

// validate rejects configurations that cannot work.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server port is required")
	}
	if cfg.Orchestrator.WorkerPoolSize < 1 {
		return errors.New("orchestrator worker_pool_size must be at least 1")
	}
	if cfg.Orchestrator.GroupMaxRounds < 1 {
		return errors.New("orchestrator group_max_rounds must be at least 1")
	}
	if cfg.Orchestrator.StableEpsilon < 0 {
		return errors.New("orchestrator stable_epsilon must not be negative")
	}
	if cfg.Ledger.AppendAttempts < 1 {
		return errors.New("ledger append_attempts must be at least 1")
	}
	switch cfg.Orchestrator.DefaultPattern {
	case "sequential", "concurrent", "handoff", "group_session", "dynamic":
	default:
		return fmt.Errorf("unknown default_pattern %q", cfg.Orchestrator.DefaultPattern)
	}
	return nil
}

// --- env setters ---

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
