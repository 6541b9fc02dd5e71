package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ExtractJSON returns the JSON value inside a model reply, dropping Markdown code
// fences and any prose around the outermost object or array.
func ExtractJSON(content string) []byte {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return []byte(s)
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return []byte(s[start:])
	}
	return []byte(s[start : end+1])
}

// DecodePayload turns a raw model reply into a Payload: normalize, validate strictly,
// and when lenient retry validation after dropping bad optional fields.
// The returned bytes are the JSON that was finally accepted (or last tried).
func DecodePayload(content string, validator *SchemaValidator, lenient bool, logger *slog.Logger) (Payload, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw := ExtractJSON(content)

	normalized, _, err := NormalizeAndSanitizeJSON(raw, logger)
	if err != nil {
		return Payload{}, raw, err
	}

	if err := validator.Validate(normalized); err != nil {
		if !lenient {
			return Payload{}, normalized, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, dropped, sErr := SanitizeOptionalFields(normalized)
		if sErr != nil {
			return Payload{}, normalized, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := validator.Validate(cleaned); vErr != nil {
			return Payload{}, cleaned, fmt.Errorf("schema validation failed: %w", vErr)
		}
		logger.Warn("llm.fallback.lenient_sanitize_applied", "dropped", dropped)
		normalized = cleaned
	}

	var out Payload
	dec := json.NewDecoder(bytes.NewReader(normalized))
	if err := dec.Decode(&out); err != nil {
		return Payload{}, normalized, fmt.Errorf("unmarshal payload: %w", err)
	}
	return out, normalized, nil
}
