package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
)

// Config holds all application configuration
type Config struct {
	Input      InputConfig
	Dataset    DatasetConfig
	Batch      BatchConfig
	LLM        LLMConfig
	Normalizer NormalizerConfig
	Database   DatabaseConfig
	Publish    PublishConfig
	Server     ServerConfig
	LogLevel   slog.Level
}

// InputConfig holds document discovery configuration
type InputConfig struct {
	Dir        string
	SkipHidden bool
}

// DatasetConfig holds persisted output configuration
type DatasetConfig struct {
	Path       string
	CovidPath  string
	Mode       constants.MergeMode
	ReportPath string
	XLSXPath   string
}

// BatchConfig holds worker pool configuration
type BatchConfig struct {
	Workers    int
	DocTimeout time.Duration
}

// LLMConfig holds fallback extractor configuration
type LLMConfig struct {
	Enabled     bool
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// NormalizerConfig holds pathogen matching configuration
type NormalizerConfig struct {
	AliasesFile    string
	FuzzyThreshold float64
	CacheSize      int
}

// DatabaseConfig holds run-history store configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// PublishConfig holds S3 publication configuration
type PublishConfig struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// ServerConfig holds daemon configuration
type ServerConfig struct {
	GRPCAddr      string
	MetricsAddr   string
	WatchDebounce time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	mode, ok := constants.ParseMergeMode(strings.ToLower(getEnv("MERGE_MODE", "merge")))
	if !ok {
		mode = constants.MergeMode(getEnv("MERGE_MODE", ""))
	}
	provider := strings.ToLower(getEnv("LLM_PROVIDER", "openrouter"))

	return &Config{
		Input: InputConfig{
			Dir:        getEnv("INPUT_DIR", "./data/markdown"),
			SkipHidden: getEnvAsBool("SKIP_HIDDEN", true),
		},
		Dataset: DatasetConfig{
			Path:       getEnv("DATASET_PATH", "./data/surveillance_all.csv"),
			CovidPath:  getEnv("COVID_DATASET_PATH", ""),
			Mode:       mode,
			ReportPath: getEnv("REPORT_PATH", ""),
			XLSXPath:   getEnv("XLSX_PATH", ""),
		},
		Batch: BatchConfig{
			Workers:    getEnvAsInt("WORKERS", 4),
			DocTimeout: getEnvAsDuration("DOC_TIMEOUT", 2*time.Minute),
		},
		LLM: LLMConfig{
			Enabled:     getEnvAsBool("LLM_ENABLED", false),
			Provider:    provider,
			Model:       getEnv("LLM_MODEL", defaultModel(provider)),
			APIKey:      getEnv("LLM_API_KEY", apiKeyEnv(provider)),
			BaseURL:     getEnv("LLM_BASE_URL", defaultBaseURL(provider)),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Normalizer: NormalizerConfig{
			AliasesFile:    getEnv("PATHOGEN_ALIASES_FILE", ""),
			FuzzyThreshold: getEnvAsFloat("FUZZY_THRESHOLD", 0.75),
			CacheSize:      getEnvAsInt("NORMALIZER_CACHE_SIZE", 1024),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", "file:surveillance_runs.db"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Publish: PublishConfig{
			Bucket:   getEnv("S3_BUCKET", ""),
			Prefix:   getEnv("S3_PREFIX", "surveillance/"),
			Region:   getEnv("S3_REGION", "us-east-1"),
			Endpoint: getEnv("S3_ENDPOINT", ""),
		},
		Server: ServerConfig{
			GRPCAddr:      getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
			WatchDebounce: getEnvAsDuration("WATCH_DEBOUNCE", 5*time.Second),
		},
		LogLevel: ParseLevel(getEnv("LOG_LEVEL", "info")),
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "gemini":
		return "gemini-2.0-flash"
	case "openai":
		return "gpt-4o-mini"
	default:
		return "deepseek/deepseek-chat"
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "openai":
		return "https://api.openai.com/v1"
	case "openrouter":
		return "https://openrouter.ai/api/v1"
	default:
		return ""
	}
}

func apiKeyEnv(provider string) string {
	switch provider {
	case "gemini":
		return getEnv("GEMINI_API_KEY", "")
	case "openai":
		return getEnv("OPENAI_API_KEY", "")
	default:
		return getEnv("OPENROUTER_API_KEY", "")
	}
}

// ParseLevel maps a level name onto slog, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if _, ok := constants.ParseMergeMode(string(c.Dataset.Mode)); !ok {
		return NewAppError("CONFIG_ERROR", "MERGE_MODE must be merge or replace", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Dataset.Path) == "" {
		return NewAppError("CONFIG_ERROR", "DATASET_PATH is required", ErrInvalidInput)
	}
	if c.Batch.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidInput)
	}
	if c.Normalizer.FuzzyThreshold <= 0 || c.Normalizer.FuzzyThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "FUZZY_THRESHOLD must be in (0, 1]", ErrInvalidInput)
	}
	if c.LLM.Enabled {
		switch c.LLM.Provider {
		case "openai", "openrouter", "gemini":
		default:
			return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be openai, openrouter or gemini", ErrInvalidInput)
		}
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "LLM_API_KEY is required when LLM_ENABLED is set", ErrInvalidInput)
		}
		if c.LLM.Model == "" {
			return NewAppError("CONFIG_ERROR", "LLM_MODEL is required when LLM_ENABLED is set", ErrInvalidInput)
		}
	}
	return nil
}
