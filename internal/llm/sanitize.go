package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"strconv"
	"strings"
)

var (
	rowKeys = map[string]struct{}{"pathogen": {}, "ili_percent": {}, "sari_percent": {}}
	topKeys = map[string]struct{}{"report_date": {}, "reference_date": {}, "report_week": {}, "rows": {}}
)

// NormalizeAndSanitizeJSON
// - Accepts a bare array as the rows list
// - Renames known synonyms (records -> rows, ili -> ili_percent, ...)
// - Coerces percent strings ("6.8%", "") to numbers or null
// - Drops rows without a pathogen label
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	m, ok := doc.(map[string]any)
	if !ok {
		arr, isArr := doc.([]any)
		if !isArr {
			return nil, nil, fmt.Errorf("sanitize: expected object or array, got %T", doc)
		}
		m = map[string]any{"rows": arr}
	}

	dropped := make([]string, 0, 8)
	rename(m, "rows", &dropped, "records", "data", "table", "results")
	rename(m, "report_date", &dropped, "date", "publication_date", "published")
	rename(m, "reference_date", &dropped, "week_start", "monday")
	rename(m, "report_week", &dropped, "week", "week_number")

	if v, ok := m["report_week"]; ok {
		if w, ok := asInt(v); ok {
			m["report_week"] = w
		} else {
			delete(m, "report_week")
			dropped = append(dropped, "report_week(type)")
		}
	}
	for _, k := range []string{"report_date", "reference_date"} {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			m[k] = strings.TrimSpace(v)
		} else if _, present := m[k]; present {
			delete(m, k)
			dropped = append(dropped, k+"(empty)")
		}
	}

	rows, _ := m["rows"].([]any)
	clean := make([]any, 0, len(rows))
	for i, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("rows[%d](type)", i))
			continue
		}
		rename(row, "pathogen", &dropped, "name", "label", "病原体", "pathogen_name")
		rename(row, "ili_percent", &dropped, "ili", "ili_rate", "ili_positive_rate")
		rename(row, "sari_percent", &dropped, "sari", "sari_rate", "sari_positive_rate")

		label, _ := row["pathogen"].(string)
		if strings.TrimSpace(label) == "" {
			dropped = append(dropped, fmt.Sprintf("rows[%d](no pathogen)", i))
			continue
		}
		row["pathogen"] = strings.TrimSpace(label)
		for _, k := range []string{"ili_percent", "sari_percent"} {
			v, ok := coercePercent(row[k])
			if !ok {
				dropped = append(dropped, fmt.Sprintf("rows[%d].%s(unparseable)", i, k))
			}
			row[k] = v
		}
		for k := range maps.Clone(row) {
			if _, ok := rowKeys[k]; !ok {
				delete(row, k)
				dropped = append(dropped, fmt.Sprintf("rows[%d].%s(unknown)", i, k))
			}
		}
		clean = append(clean, row)
	}
	m["rows"] = clean

	for k := range maps.Clone(m) {
		if _, ok := topKeys[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.fallback.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// rename moves the first present synonym to key without overwriting an existing value.
func rename(m map[string]any, key string, dropped *[]string, synonyms ...string) {
	for _, from := range synonyms {
		v, ok := m[from]
		if !ok {
			continue
		}
		if _, exists := m[key]; !exists {
			m[key] = v
		}
		delete(m, from)
		*dropped = append(*dropped, from+"->"+key)
	}
}

// coercePercent returns a float64 or nil. ok is false when a value was present but unusable.
func coercePercent(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, false
		}
		return t, true
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
		switch strings.ToLower(s) {
		case "", "null", "-", "n/a", "na":
			return nil, true
		}
		f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimSuffix(strings.TrimPrefix(s, "第"), "周")
		n, err := strconv.Atoi(s)
		return n, err == nil
	default:
		return 0, false
	}
}
