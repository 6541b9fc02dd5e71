package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joseph-ayodele/surveillance-tracker/internal/llm"
)

const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Config for any OpenAI-compatible chat/completions endpoint (OpenAI or OpenRouter).
type Config struct {
	APIKey          string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL         string        // default https://api.openai.com/v1
	Model           string        // e.g., "gpt-4o-mini", "deepseek/deepseek-chat"
	Temperature     float32       // 0..2
	Timeout         time.Duration // http client timeout
	LenientOptional bool

	// OpenRouter attribution headers, sent when set.
	Referer string
	Title   string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	validator  *llm.SchemaValidator
	schema     map[string]any
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	schema := llm.BuildRowsJSONSchema(nil)
	validator, err := llm.NewSchemaValidator(schema)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		validator:  validator,
		schema:     schema,
		log:        logger,
	}, nil
}
