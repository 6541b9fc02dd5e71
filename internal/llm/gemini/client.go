package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/surveillance-tracker/internal/llm"
)

// Config for the Gemini fallback provider.
type Config struct {
	APIKey          string // if empty, falls back to env GEMINI_API_KEY
	Model           string // default gemini-2.0-flash
	Temperature     float32
	LenientOptional bool
}

// Client implements llm.FallbackExtractor on the Gemini API.
type Client struct {
	cfg       Config
	client    *genai.Client
	model     *genai.GenerativeModel
	validator *llm.SchemaValidator
	log       *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	validator, err := llm.NewSchemaValidator(llm.BuildRowsJSONSchema(nil))
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	model.ResponseMIMEType = "application/json"

	return &Client{cfg: cfg, client: client, model: model, validator: validator, log: logger}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ExtractRows implements llm.FallbackExtractor.
func (c *Client) ExtractRows(ctx context.Context, req llm.ExtractRequest) (llm.Payload, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("llm.fallback.start",
		"req_id", rid,
		"doc_id", req.DocumentID,
		"provider", "gemini",
		"model", c.cfg.Model,
		"text_len", len(req.Text),
	)

	prompt := llm.BuildSystemPrompt(req) + "\n\n" + llm.BuildUserPrompt(req)
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.log.Error("llm.fallback.http_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Payload{}, nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		c.log.Error("llm.fallback.no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Payload{}, nil, fmt.Errorf("no candidates in gemini response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	out, accepted, err := llm.DecodePayload(sb.String(), c.validator, c.cfg.LenientOptional, c.log)
	if err != nil {
		c.log.Error("llm.fallback.payload_invalid", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Payload{}, accepted, err
	}
	c.log.Info("llm.fallback.ok",
		"req_id", rid,
		"doc_id", req.DocumentID,
		"rows", len(out.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, accepted, nil
}
