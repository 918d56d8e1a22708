package config

import "time"

// Default value constants.
const (
	DefaultDBHost     = "aact-db.ctti-clinicaltrials.org"
	DefaultDBPort     = 5432
	DefaultDBName     = "aact"
	DefaultDBSchema   = "ctgov"
	DefaultDBMaxConns = 10

	DefaultRedisAddr = "localhost:6379"

	DefaultChEMBLBaseURL  = "https://www.ebi.ac.uk/chembl/api/data"
	DefaultChEMBLRate     = 5.0
	DefaultChEMBLPageSize = 100

	DefaultLLMBaseURL = "http://localhost:11434"
	DefaultLLMModel   = "llama3.1:8b"

	DefaultMeSHBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	DefaultPartialThreshold = 0.72
	DefaultMaxCandidates    = 10

	DefaultConcurrency = 8

	DefaultOutputDir = "output"

	DefaultKafkaTopic = "trialdossier.runs"

	DefaultMetricsAddr = ":9090"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills zero-value fields in cfg with the pipeline defaults.
// Fields already set by the caller are left unchanged so that explicit
// configuration always wins.  It must run after unmarshalling and before
// Validate so that optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.Schema == "" {
		cfg.Database.Schema = DefaultDBSchema
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "require"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = 24 * time.Hour
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "trialdossier"
	}

	if cfg.ChEMBL.BaseURL == "" {
		cfg.ChEMBL.BaseURL = DefaultChEMBLBaseURL
	}
	if cfg.ChEMBL.Timeout == 0 {
		cfg.ChEMBL.Timeout = 30 * time.Second
	}
	if cfg.ChEMBL.MaxRetries == 0 {
		cfg.ChEMBL.MaxRetries = 3
	}
	if cfg.ChEMBL.RatePerSecond == 0 {
		cfg.ChEMBL.RatePerSecond = DefaultChEMBLRate
	}
	if cfg.ChEMBL.PageSize == 0 {
		cfg.ChEMBL.PageSize = DefaultChEMBLPageSize
	}
	if cfg.ChEMBL.CacheTTL == 0 {
		cfg.ChEMBL.CacheTTL = 24 * time.Hour
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = DefaultLLMBaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}

	if cfg.MeSH.BaseURL == "" {
		cfg.MeSH.BaseURL = DefaultMeSHBaseURL
	}
	if cfg.MeSH.Timeout == 0 {
		cfg.MeSH.Timeout = 15 * time.Second
	}

	if cfg.Resolver.PartialThreshold == 0 {
		cfg.Resolver.PartialThreshold = DefaultPartialThreshold
	}
	if cfg.Resolver.MaxCandidates == 0 {
		cfg.Resolver.MaxCandidates = DefaultMaxCandidates
	}

	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = DefaultConcurrency
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stdout"}
	}
	if len(cfg.Log.ErrorOutputPaths) == 0 {
		cfg.Log.ErrorOutputPaths = []string{"stderr"}
	}
}
