// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (DOCENT_* prefix, plus DATABASE_URL)
//  2. Config file (~/.docent/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: generation model and embedder selection
//   - Chunking: section size bounds for the retrieval pipeline
//   - Retrieval: topK and conversation history limits
//   - Storage: PostgreSQL connection
//   - Source: GitHub repository holding the documentation
//
// Security: the database password and GitHub token are masked in
// MarshalJSON and never logged.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidModelName indicates the generation model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidChunkSize indicates the chunk size bounds are inconsistent.
	ErrInvalidChunkSize = errors.New("invalid chunk size bounds")

	// ErrInvalidTopK indicates the retrieval topK is out of range.
	ErrInvalidTopK = errors.New("invalid topK")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidSourceRepo indicates the GitHub source is incomplete.
	ErrInvalidSourceRepo = errors.New("invalid source repository")
)

// Defaults for the retrieval pipeline.
const (
	DefaultModelName     = "gemini-2.5-flash"
	DefaultEmbedderModel = "text-embedding-004"

	DefaultMinChunkSize = 150
	DefaultMaxChunkSize = 1500
	DefaultShortDoc     = 600

	DefaultTopK         = 5
	DefaultHistoryLimit = 20
)

// SourceConfig identifies the GitHub repository holding the documentation.
type SourceConfig struct {
	Owner  string `mapstructure:"owner" json:"owner"`
	Repo   string `mapstructure:"repo" json:"repo"`
	Branch string `mapstructure:"branch" json:"branch"`
	Path   string `mapstructure:"path" json:"path"`
	Token  string `mapstructure:"token" json:"token"` // SENSITIVE: masked in MarshalJSON
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Chunking configuration
	MinChunkSize      int `mapstructure:"min_chunk_size" json:"min_chunk_size"`
	MaxChunkSize      int `mapstructure:"max_chunk_size" json:"max_chunk_size"`
	ShortDocThreshold int `mapstructure:"short_doc_threshold" json:"short_doc_threshold"`

	// Retrieval configuration
	TopK         int `mapstructure:"top_k" json:"top_k"`
	HistoryLimit int `mapstructure:"history_limit" json:"history_limit"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Documentation source
	Source SourceConfig `mapstructure:"source" json:"source"`

	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docent")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("DOCENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults and env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("min_chunk_size", DefaultMinChunkSize)
	v.SetDefault("max_chunk_size", DefaultMaxChunkSize)
	v.SetDefault("short_doc_threshold", DefaultShortDoc)

	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("history_limit", DefaultHistoryLimit)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "docent")
	v.SetDefault("postgres_password", "docent_dev_password")
	v.SetDefault("postgres_db_name", "docent")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("source.branch", "")
	v.SetDefault("source.path", "docs")

	v.SetDefault("listen_addr", ":8080")
}

// Validate checks configuration consistency. Fail-fast at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}

	if c.MinChunkSize <= 0 || c.MaxChunkSize <= 0 || c.MinChunkSize >= c.MaxChunkSize {
		return fmt.Errorf("%w: min %d must be positive and below max %d",
			ErrInvalidChunkSize, c.MinChunkSize, c.MaxChunkSize)
	}
	if c.ShortDocThreshold < 0 {
		return fmt.Errorf("%w: short document threshold must not be negative", ErrInvalidChunkSize)
	}

	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: topK %d must be in [1, 100]", ErrInvalidTopK, c.TopK)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d must be in [1, 65535]", ErrInvalidPostgresPort, c.PostgresPort)
	}

	// The source is only required by sync commands; validate shape when set.
	if (c.Source.Owner == "") != (c.Source.Repo == "") {
		return fmt.Errorf("%w: owner and repo must be set together", ErrInvalidSourceRepo)
	}

	return nil
}

// FullModelName returns the provider-qualified model name for Genkit, e.g.
// "googleai/gemini-2.5-flash". If ModelName already contains a "/", it is
// returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// MarshalJSON masks sensitive fields so the config can be logged safely.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	masked := alias(*c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "********"
	}
	if masked.Source.Token != "" {
		masked.Source.Token = "********"
	}
	return json.Marshal(masked)
}
