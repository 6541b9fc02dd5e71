package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// SanitizeOptionalFields removes optional fields that don't meet the stricter schema,
// so the overall document can still validate. Rows are never touched: they are the
// payload, and a bad row should fail loudly rather than vanish here.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string
	for _, k := range []string{"report_date", "reference_date"} {
		v, ok := m[k]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		s = strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
		if !isStr || !reISODate.MatchString(s) {
			delete(m, k)
			dropped = append(dropped, k)
			continue
		}
		m[k] = s
	}

	if v, ok := m["report_week"]; ok {
		w, isNum := v.(float64)
		if !isNum || w < 1 || w > 53 || w != float64(int(w)) {
			delete(m, "report_week")
			dropped = append(dropped, "report_week")
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}
