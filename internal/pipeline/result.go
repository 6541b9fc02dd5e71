package pipeline

import (
	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/rowparse"
	"github.com/joseph-ayodele/surveillance-tracker/internal/table"
)

// Warning codes attached to a document result.
const (
	WarnWeekMismatch         = "week_mismatch"
	WarnHeaderWeekMismatch   = "header_week_mismatch"
	WarnFallbackWeekMismatch = "fallback_week_mismatch"
	WarnFallbackDateMismatch = "fallback_date_mismatch"
	WarnLowConfidence        = "low_confidence_rows"
	WarnConflict             = "duplicate_pathogen_conflict"
)

// Fallback outcomes.
const (
	FallbackOK          = "ok"
	FallbackEmpty       = "empty"
	FallbackTimeout     = "timeout"
	FallbackUnavailable = "unavailable"
)

// TableSummary describes the located table without its cells.
type TableSummary struct {
	Format          table.Format `json:"format"`
	AnchorLine      int          `json:"anchor_line"`
	HeaderRows      int          `json:"header_rows"`
	DataRows        int          `json:"data_rows"`
	HeaderWeek      int          `json:"header_week,omitempty"`
	RolesFromHeader bool         `json:"roles_from_header"`
}

// FallbackSummary records one fallback attempt.
type FallbackSummary struct {
	Outcome    string `json:"outcome"`
	Rows       int    `json:"rows"`
	ReportWeek int    `json:"report_week,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DocumentResult is everything the batch needs to know about one document.
type DocumentResult struct {
	DocumentID    string                   `json:"doc_id"`
	Path          string                   `json:"path"`
	Status        constants.DocumentStatus `json:"status"`
	Resolution    *entity.Resolution       `json:"resolution,omitempty"`
	Table         *TableSummary            `json:"table,omitempty"`
	Candidates    int                      `json:"candidates"`
	Skipped       []rowparse.Skip          `json:"skipped_rows,omitempty"`
	LowConfidence int                      `json:"low_confidence"`
	Records       []entity.Record          `json:"-"`
	Unrecognized  []entity.UnrecognizedRow `json:"unrecognized,omitempty"`
	Conflicts     []Conflict               `json:"conflicts,omitempty"`
	Fallback      *FallbackSummary         `json:"fallback,omitempty"`
	Warnings      []string                 `json:"warnings,omitempty"`
	ErrorKind     string                   `json:"error_kind,omitempty"`
	Error         string                   `json:"error,omitempty"`
	ElapsedMS     int64                    `json:"elapsed_ms"`
}

// RecordCount is the number of records the document contributes.
func (r DocumentResult) RecordCount() int {
	return len(r.Records)
}

func (r *DocumentResult) fail(status constants.DocumentStatus, kind string, err error) {
	r.Status = status
	r.ErrorKind = kind
	if err != nil {
		r.Error = err.Error()
	}
}
