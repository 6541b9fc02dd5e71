package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validator(t *testing.T) *SchemaValidator {
	t.Helper()
	v, err := NewSchemaValidator(BuildRowsJSONSchema([]string{"新型冠状病毒", "流感病毒"}))
	require.NoError(t, err)
	return v
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare object", `{"rows":[]}`, `{"rows":[]}`},
		{"fenced", "```json\n{\"rows\":[]}\n```", `{"rows":[]}`},
		{"prose around", "Here you go:\n{\"rows\":[]}\nDone.", `{"rows":[]}`},
		{"array", "[{\"pathogen\":\"腺病毒\"}]", `[{"pathogen":"腺病毒"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(ExtractJSON(tt.content)))
		})
	}
}

func TestNormalizeAndSanitizeJSON(t *testing.T) {
	raw := []byte(`{
		"week": "第36周",
		"date": "2025-09-10",
		"model_notes": "ignored",
		"records": [
			{"name": "新型冠状病毒", "ili": "6.8%", "sari": 3.7, "change": "+0.5"},
			{"label": "流感病毒", "ili_percent": "", "sari_percent": "n/a"},
			{"pathogen": "  ", "ili_percent": 1},
			"garbage",
			{"pathogen": "腺病毒", "ili_percent": "abc", "sari_percent": null}
		]
	}`)

	out, dropped, err := NormalizeAndSanitizeJSON(raw, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, dropped)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, float64(36), got["report_week"])
	assert.Equal(t, "2025-09-10", got["report_date"])
	assert.NotContains(t, got, "model_notes")

	rows := got["rows"].([]any)
	require.Len(t, rows, 3)
	first := rows[0].(map[string]any)
	assert.Equal(t, map[string]any{"pathogen": "新型冠状病毒", "ili_percent": 6.8, "sari_percent": 3.7}, first)
	second := rows[1].(map[string]any)
	assert.Nil(t, second["ili_percent"])
	assert.Nil(t, second["sari_percent"])
	third := rows[2].(map[string]any)
	assert.Nil(t, third["ili_percent"])
	assert.Contains(t, dropped, "rows[4].ili_percent(unparseable)")
}

func TestNormalizeAndSanitizeJSON_BareArray(t *testing.T) {
	out, _, err := NormalizeAndSanitizeJSON([]byte(`[{"pathogen":"鼻病毒","ili_percent":0.4,"sari_percent":0.2}]`), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[{"pathogen":"鼻病毒","ili_percent":0.4,"sari_percent":0.2}]}`, string(out))

	_, _, err = NormalizeAndSanitizeJSON([]byte(`"just a string"`), nil)
	assert.Error(t, err)
}

func TestDecodePayload(t *testing.T) {
	content := "```json\n" + `{"report_week": 36, "reference_date": "2025-09-01", "rows": [
		{"pathogen": "新冠病毒", "ili_percent": 6.8, "sari_percent": null}
	]}` + "\n```"

	p, accepted, err := DecodePayload(content, validator(t), false, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, accepted)
	assert.Equal(t, 36, p.ReportWeek)
	assert.Equal(t, "2025-09-01", p.ReferenceDate)
	require.Len(t, p.Rows, 1)
	assert.Equal(t, "新冠病毒", p.Rows[0].Pathogen)
	assert.Equal(t, 6.8, *p.Rows[0].ILIPercent)
	assert.Nil(t, p.Rows[0].SARIPercent)
}

func TestDecodePayload_LenientDropsBadOptionals(t *testing.T) {
	content := `{"report_week": 60, "report_date": "9月10日", "rows": [{"pathogen": "腺病毒", "ili_percent": 2.1, "sari_percent": 1.4}]}`

	_, _, err := DecodePayload(content, validator(t), false, nil)
	require.Error(t, err)

	p, _, err := DecodePayload(content, validator(t), true, nil)
	require.NoError(t, err)
	assert.Zero(t, p.ReportWeek)
	assert.Empty(t, p.ReportDate)
	require.Len(t, p.Rows, 1)
}

func TestDecodePayload_NotJSON(t *testing.T) {
	_, _, err := DecodePayload("I could not find a table.", validator(t), true, nil)
	assert.Error(t, err)
}

func TestSanitizeOptionalFields(t *testing.T) {
	out, dropped, err := SanitizeOptionalFields([]byte(`{"report_date":"2025/09/10","reference_date":"soon","report_week":12.5,"rows":[]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"report_date":"2025-09-10","rows":[]}`, string(out))
	assert.ElementsMatch(t, []string{"reference_date", "report_week"}, dropped)
}

func TestBuildUserPrompt_Truncates(t *testing.T) {
	long := make([]rune, maxPromptRunes+10)
	for i := range long {
		long[i] = '表'
	}
	prompt := BuildUserPrompt(ExtractRequest{FilenameHint: "t20250901.md", ReferenceDate: "2025-09-01", ReportWeek: 36, Text: string(long)})
	assert.Contains(t, prompt, "Filename: t20250901.md")
	assert.Contains(t, prompt, "2025-09-01 (ISO week 36)")
	assert.Contains(t, prompt, "…(truncated)")
}
