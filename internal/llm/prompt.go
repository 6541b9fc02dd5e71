package llm

import (
	"strconv"
	"strings"
)

// maxPromptRunes bounds the document text sent to the model.
const maxPromptRunes = 12000

// BuildSystemPrompt states the output contract: the table of pathogen positivity rates,
// one row per pathogen, percentages as bare numbers and null when absent.
func BuildSystemPrompt(req ExtractRequest) string {
	var vocab string
	if len(req.AllowedPathogens) > 0 {
		vocab = "Use these pathogen names when a row matches one of them: " + strings.Join(req.AllowedPathogens, ", ") + ". " +
			"Otherwise copy the label exactly as printed. "
	}

	parts := []string{
		"You extract data from a Chinese CDC weekly acute respiratory infection surveillance report. Return ONLY JSON that matches the provided JSON Schema.",
		"Find the table of pathogen positivity rates among sentinel-hospital cases: influenza-like illness (ILI, 门急诊流感样病例) and severe acute respiratory infection (SARI, 住院严重急性呼吸道感染病例).",
		"Emit one object in 'rows' per pathogen with 'pathogen', 'ili_percent' and 'sari_percent'.",
		vocab,
		"Percentages are numbers between 0 and 100 without the % sign. Use the current week's value, never the week-over-week change.",
		"If a rate is not printed, use null. Never estimate or compute a value.",
		"Skip total rows, age-group rows and footnotes.",
		"If the report states its week or publication date, include 'report_week' and 'report_date' (YYYY-MM-DD).",
		"If no such table exists, return {\"rows\": []}.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the filename hint, the resolved week and the document text.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	if req.ReferenceDate != "" {
		b.WriteString("Surveillance week starts: ")
		b.WriteString(req.ReferenceDate)
		if req.ReportWeek > 0 {
			b.WriteString(" (ISO week ")
			b.WriteString(strconv.Itoa(req.ReportWeek))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}

	text := strings.TrimSpace(req.Text)
	b.WriteString("\nReport text (Markdown):\n")
	if r := []rune(text); len(r) > maxPromptRunes {
		b.WriteString(string(r[:maxPromptRunes]))
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
