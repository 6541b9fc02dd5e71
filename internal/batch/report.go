package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/dataset"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline"
)

const WarnBatchConflict = "batch_conflict"

// DocumentReport is the diagnostics line of one document.
type DocumentReport struct {
	pipeline.DocumentResult
	ReferenceDate   string `json:"reference_date,omitempty"`
	TargetEndDate   string `json:"target_end_date,omitempty"`
	ReportWeek      int    `json:"report_week,omitempty"`
	RowsLocated     int    `json:"rows_located"`
	RecordsProduced int    `json:"records_produced"`
}

func newDocumentReport(res pipeline.DocumentResult) DocumentReport {
	d := DocumentReport{DocumentResult: res, RecordsProduced: len(res.Records)}
	if res.Resolution != nil {
		d.ReferenceDate = res.Resolution.ReferenceDate.Format(constants.DateLayout)
		d.TargetEndDate = res.Resolution.TargetEndDate.Format(constants.DateLayout)
		d.ReportWeek = res.Resolution.ReportWeek
	}
	if res.Table != nil {
		d.RowsLocated = res.Table.DataRows
	} else if res.Fallback != nil {
		d.RowsLocated = res.Fallback.Rows
	}
	return d
}

// BatchConflict is an identity key two documents of the same run disagree on.
// The document later in path order wins.
type BatchConflict struct {
	ReferenceDate   string             `json:"reference_date"`
	ReportWeek      int                `json:"report_week"`
	Pathogen        constants.Pathogen `json:"pathogen"`
	KeptDocument    string             `json:"kept_doc_id"`
	DroppedDocument string             `json:"dropped_doc_id"`
}

// RunReport is the audit trail of one batch run.
type RunReport struct {
	RunID       string              `json:"run_id"`
	Mode        constants.MergeMode `json:"mode"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	DatasetPath string              `json:"dataset_path"`
	CovidPath   string              `json:"covid_path,omitempty"`

	Documents        int                              `json:"documents"`
	Succeeded        int                              `json:"succeeded"`
	Failed           int                              `json:"failed"`
	StatusCounts     map[constants.DocumentStatus]int `json:"status_counts"`
	RecordsExtracted int                              `json:"records_extracted"`
	BatchConflicts   []BatchConflict                  `json:"batch_conflicts,omitempty"`

	Merge          *dataset.MergeReport `json:"merge,omitempty"`
	DatasetWritten bool                 `json:"dataset_written"`
	CovidWritten   bool                 `json:"covid_written,omitempty"`
	SinkErrors     map[string]string    `json:"sink_errors,omitempty"`
	ErrorKind      string               `json:"error_kind,omitempty"`
	Error          string               `json:"error,omitempty"`

	Results []DocumentReport `json:"documents_detail"`
}

// Failures returns the reports of documents that produced no records.
func (r *RunReport) Failures() []DocumentReport {
	var out []DocumentReport
	for _, d := range r.Results {
		if !d.Status.Succeeded() {
			out = append(out, d)
		}
	}
	return out
}

func (r *RunReport) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// WriteReport writes rep as indented JSON.
func WriteReport(path string, rep *RunReport) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
