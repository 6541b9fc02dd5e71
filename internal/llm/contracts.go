package llm

import "context"

// PayloadRow is one table row as returned by the model.
type PayloadRow struct {
	Pathogen    string   `json:"pathogen"`
	ILIPercent  *float64 `json:"ili_percent"`
	SARIPercent *float64 `json:"sari_percent"`
}

// Payload is the normalized shape we want from the LLM. Dates are hints only;
// the caller's temporal resolution always wins.
type Payload struct {
	ReportDate    string       `json:"report_date,omitempty"`    // YYYY-MM-DD
	ReferenceDate string       `json:"reference_date,omitempty"` // YYYY-MM-DD, Monday
	ReportWeek    int          `json:"report_week,omitempty"`
	Rows          []PayloadRow `json:"rows"`
}

type ExtractRequest struct {
	DocumentID       string
	Text             string
	FilenameHint     string
	AllowedPathogens []string

	// Resolved week, given to the model as context.
	ReferenceDate string
	ReportWeek    int
}

// FallbackExtractor is the interface the document processor depends on when
// rule-based extraction finds nothing.
type FallbackExtractor interface {
	ExtractRows(ctx context.Context, req ExtractRequest) (Payload, []byte /*rawJSON*/, error)
}
