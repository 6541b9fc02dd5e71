package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/llm"
	"github.com/joseph-ayodele/surveillance-tracker/internal/llm/gemini"
	"github.com/joseph-ayodele/surveillance-tracker/internal/llm/openai"
)

// New builds the configured fallback extractor. It returns nil, a no-op closer and
// no error when the fallback is disabled.
func New(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.FallbackExtractor, func() error, error) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		return nil, noop, nil
	}

	switch cfg.Provider {
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:          cfg.APIKey,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			LenientOptional: true,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	case "openai", "openrouter":
		oc := openai.Config{
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			Timeout:         cfg.Timeout,
			LenientOptional: true,
		}
		if cfg.Provider == "openrouter" {
			if oc.BaseURL == "" {
				oc.BaseURL = openai.OpenRouterBaseURL
			}
			oc.Title = "surveillance-tracker"
		}
		c, err := openai.NewClient(oc, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown llm provider %q", common.ErrInvalidInput, cfg.Provider)
	}
}
