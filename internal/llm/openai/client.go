package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/surveillance-tracker/internal/llm"
)

// ExtractRows implements llm.FallbackExtractor using text-only chat/completions.
func (c *Client) ExtractRows(ctx context.Context, req llm.ExtractRequest) (llm.Payload, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.fallback.start",
		"req_id", rid,
		"doc_id", req.DocumentID,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
	)

	schema := c.schema
	if len(req.AllowedPathogens) > 0 {
		schema = llm.BuildRowsJSONSchema(req.AllowedPathogens)
	}
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	if c.cfg.Referer != "" {
		headers["HTTP-Referer"] = c.cfg.Referer
	}
	if c.cfg.Title != "" {
		headers["X-Title"] = c.cfg.Title
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, httpErr := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if httpErr != nil {
		c.log.Error("llm.fallback.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Payload{}, raw, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.fallback.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Payload{}, raw, fmt.Errorf("decode chat response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.fallback.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Payload{}, raw, fmt.Errorf("no choices in chat response")
	}

	out, accepted, err := llm.DecodePayload(cc.Choices[0].Message.Content, c.validator, c.cfg.LenientOptional, c.log)
	if err != nil {
		c.log.Error("llm.fallback.payload_invalid",
			"req_id", rid, "error", err, "content", string(accepted),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Payload{}, accepted, err
	}

	c.log.Info("llm.fallback.ok",
		"req_id", rid,
		"doc_id", req.DocumentID,
		"rows", len(out.Rows),
		"report_week", out.ReportWeek,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, accepted, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
