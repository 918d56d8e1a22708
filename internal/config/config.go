// Package config defines all configuration structures for the TrialDossier
// pipeline.  No I/O or parsing logic lives here, only plain data types and
// validation.
package config

import (
	"fmt"
	"time"

	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
)

// DatabaseConfig holds connection parameters for the clinical trial registry
// (an AACT-schema PostgreSQL database).
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	Schema          string        `mapstructure:"schema"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN renders the pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig holds Redis connection parameters for the annotation cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	Enabled      bool          `mapstructure:"enabled"`
}

// ChEMBLConfig holds parameters for the ChEMBL REST annotation source.
type ChEMBLConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	// RatePerSecond caps outgoing requests; the public API throttles hard.
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	PageSize      int           `mapstructure:"page_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// LLMConfig holds parameters for the local LLM intervention normalizer.
type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
}

// MeSHConfig holds parameters for disease-name canonicalization via the NCBI
// MeSH lookup.
type MeSHConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
}

// ResolverConfig holds entity-resolution tunables.
type ResolverConfig struct {
	PartialThreshold float64 `mapstructure:"partial_threshold"`
	MaxCandidates    int     `mapstructure:"max_candidates"`
	// EntitySnapshot optionally points at a JSON entity dump used instead of
	// live annotation-source lookups when seeding the index.
	EntitySnapshot string `mapstructure:"entity_snapshot"`
}

// PipelineConfig holds run-level execution parameters.
type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	// TrialLimit caps registry rows per run; 0 means unlimited.  Useful for
	// smoke runs against the full registry.
	TrialLimit int `mapstructure:"trial_limit"`
}

// OutputConfig holds CSV output parameters.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// MinIOConfig holds object-storage parameters for dossier uploads.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Enabled   bool   `mapstructure:"enabled"`
}

// KafkaConfig holds parameters for publishing run-completion events.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Enabled bool     `mapstructure:"enabled"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

// Config is the root configuration for the pipeline.  Every infrastructure
// component and application service reads its settings from the relevant
// sub-struct.
type Config struct {
	Database DatabaseConfig    `mapstructure:"database"`
	Redis    RedisConfig       `mapstructure:"redis"`
	ChEMBL   ChEMBLConfig      `mapstructure:"chembl"`
	LLM      LLMConfig         `mapstructure:"llm"`
	MeSH     MeSHConfig        `mapstructure:"mesh"`
	Resolver ResolverConfig    `mapstructure:"resolver"`
	Pipeline PipelineConfig    `mapstructure:"pipeline"`
	Output   OutputConfig      `mapstructure:"output"`
	MinIO    MinIOConfig       `mapstructure:"minio"`
	Kafka    KafkaConfig       `mapstructure:"kafka"`
	Metrics  MetricsConfig     `mapstructure:"metrics"`
	Log      logging.LogConfig `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.  It
// returns the first error encountered; callers should treat any error as
// fatal and refuse to start a run.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.ChEMBL.BaseURL == "" {
		return fmt.Errorf("config: chembl.base_url is required")
	}
	if c.ChEMBL.RatePerSecond <= 0 {
		return fmt.Errorf("config: chembl.rate_per_second must be > 0, got %v", c.ChEMBL.RatePerSecond)
	}

	if c.LLM.Enabled {
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("config: llm.base_url is required when the normalizer is enabled")
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("config: llm.model is required when the normalizer is enabled")
		}
	}

	if c.Resolver.PartialThreshold < 0 || c.Resolver.PartialThreshold > 1 {
		return fmt.Errorf("config: resolver.partial_threshold %v is out of range [0, 1]", c.Resolver.PartialThreshold)
	}
	if c.Resolver.MaxCandidates < 1 {
		return fmt.Errorf("config: resolver.max_candidates must be >= 1, got %d", c.Resolver.MaxCandidates)
	}

	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("config: pipeline.concurrency must be >= 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Pipeline.TrialLimit < 0 {
		return fmt.Errorf("config: pipeline.trial_limit must be >= 0, got %d", c.Pipeline.TrialLimit)
	}

	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required when uploads are enabled")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required when uploads are enabled")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when events are enabled")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
