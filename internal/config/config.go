// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (ARCA_* plus GEMINI_API_KEY / GEMINI_API_KEY_1..20)
//  2. Config file (~/.arca/config.yaml or ./config.yaml)
//  3. Default values
//
// Sensitive values (API keys, passwords) are masked in MarshalJSON and must
// never be logged.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrNoAPIKeys indicates no Gemini API keys were found in any source.
	ErrNoAPIKeys = errors.New("no Gemini API keys configured")

	// ErrInvalidChunking indicates chunk size/overlap values are unusable.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidModelName indicates an empty or malformed model name.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderDimension indicates an unsupported embedding dimension.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPipeline indicates pipeline tunables are out of range.
	ErrInvalidPipeline = errors.New("invalid pipeline configuration")
)

const (
	// DefaultGenerationModel is the Gemini model used for audit and
	// recommendation calls.
	DefaultGenerationModel = "gemini-2.5-flash"

	// DefaultEmbedderModel is the Gemini embedding model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema uses 768.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension matches the vector(768) column in the
	// policy_chunks migration.
	DefaultEmbedderDimension = 768

	// MaxEnvAPIKeys bounds the GEMINI_API_KEY_n scan.
	MaxEnvAPIKeys = 20
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; when adding new
// secrets, update MarshalJSON.
type Config struct {
	// Gemini credentials and models
	GeminiAPIKeys     []string `mapstructure:"gemini_api_keys" json:"gemini_api_keys"`
	GenerationModel   string   `mapstructure:"generation_model" json:"generation_model"`
	EmbedderModel     string   `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int      `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// RetryFactor scales the rotation retry ceiling: a single remote
	// operation attempts at most RetryFactor * len(keys) times.
	RetryFactor int `mapstructure:"retry_factor" json:"retry_factor"`

	// Chunking
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval
	SearchTopK    int    `mapstructure:"search_top_k" json:"search_top_k"`
	DefaultTenant string `mapstructure:"default_tenant" json:"default_tenant"`

	// Pipeline
	PipelineAttempts int  `mapstructure:"pipeline_attempts" json:"pipeline_attempts"`
	MaxPolicyMatches int  `mapstructure:"max_policy_matches" json:"max_policy_matches"`
	RiskLimit        int  `mapstructure:"risk_limit" json:"risk_limit"`
	PadRisks         bool `mapstructure:"pad_risks" json:"pad_risks"`
	MaxFieldLen      int  `mapstructure:"max_field_len" json:"max_field_len"`

	// Storage
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server
	Addr           string   `mapstructure:"addr" json:"addr"`
	CORSOrigins    []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy     bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RatePerSecond  float64  `mapstructure:"rate_per_second" json:"rate_per_second"`
	RateBurst      int      `mapstructure:"rate_burst" json:"rate_burst"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes" json:"max_upload_bytes"`

	// Observability (optional; empty endpoint disables tracing)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load reads configuration from defaults, config file, and environment.
// Validation runs before returning (fail-fast).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".arca"))
	}
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	cfg.GeminiAPIKeys = append(cfg.GeminiAPIKeys, collectEnvAPIKeys()...)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("generation_model", DefaultGenerationModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedder_dimension", DefaultEmbedderDimension)
	v.SetDefault("retry_factor", 2)

	v.SetDefault("chunk_size", 400)
	v.SetDefault("chunk_overlap", 50)

	v.SetDefault("search_top_k", 5)
	v.SetDefault("default_tenant", "default")

	v.SetDefault("pipeline_attempts", 3)
	v.SetDefault("max_policy_matches", 5)
	v.SetDefault("risk_limit", 5)
	v.SetDefault("pad_risks", false)
	v.SetDefault("max_field_len", 500)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "arca")
	v.SetDefault("postgres_password", "arca_dev_password")
	v.SetDefault("postgres_db_name", "arca")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("addr", "127.0.0.1:8090")
	v.SetDefault("cors_origins", []string{"http://localhost:3000", "http://localhost:3001"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_per_second", 5.0)
	v.SetDefault("rate_burst", 10)
	v.SetDefault("max_upload_bytes", int64(10<<20)) // 10 MiB

	v.SetDefault("service_name", "arca")
	v.SetDefault("environment", "dev")
}

// bindEnv maps ARCA_* environment variables onto config keys.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("ARCA")
	v.AutomaticEnv()

	keys := []string{
		"generation_model", "embedder_model", "embedder_dimension", "retry_factor",
		"chunk_size", "chunk_overlap",
		"search_top_k", "default_tenant",
		"pipeline_attempts", "max_policy_matches", "risk_limit", "pad_risks", "max_field_len",
		"postgres_host", "postgres_port", "postgres_user", "postgres_password",
		"postgres_db_name", "postgres_ssl_mode",
		"addr", "cors_origins", "trust_proxy",
		"rate_per_second", "rate_burst", "max_upload_bytes",
		"otlp_endpoint", "service_name", "environment",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// collectEnvAPIKeys gathers GEMINI_API_KEY plus GEMINI_API_KEY_1..N.
// Gaps in the numbering are tolerated.
func collectEnvAPIKeys() []string {
	var keys []string
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		keys = append(keys, k)
	}
	for i := 1; i <= MaxEnvAPIKeys; i++ {
		if k := os.Getenv(fmt.Sprintf("GEMINI_API_KEY_%d", i)); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// MarshalJSON masks sensitive fields so config dumps are safe to log.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(*c)
	masked.PostgresPassword = "***"
	masked.GeminiAPIKeys = make([]string, len(c.GeminiAPIKeys))
	for i := range c.GeminiAPIKeys {
		masked.GeminiAPIKeys[i] = "***"
	}
	return json.Marshal(masked)
}
