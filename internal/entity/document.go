package entity

import (
	"time"
)

// Document represents one converted report as read from disk.
type Document struct {
	ID   string `json:"id"`   // file stem, e.g. t20250901_312973
	Path string `json:"path"` // source path as discovered
	Raw  string `json:"-"`    // text as read (invalid UTF-8 dropped)
	Text string `json:"-"`    // NFKC-normalized text used by every matcher
}

// Resolution is the temporal identity of a document.
type Resolution struct {
	ReferenceDate   time.Time  `json:"reference_date"`  // Monday of the surveillance week
	TargetEndDate   time.Time  `json:"target_end_date"` // Sunday, ReferenceDate + 6 days
	ReportWeek      int        `json:"report_week"`     // ISO week of ReferenceDate
	ISOYear         int        `json:"iso_year"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	StatedWeek      int        `json:"stated_week,omitempty"` // week number written in the text, 0 if none
	Source          string     `json:"source"`                // matcher that produced the date
}

// RawTableRow is one row of the located table before any interpretation.
type RawTableRow struct {
	Index int      `json:"index"`
	Cells []string `json:"cells"`
}

// Candidate is a parsed row, pathogen label still raw.
type Candidate struct {
	RowIndex      int      `json:"row_index"`
	RawLabel      string   `json:"raw_label"`
	ILI           *float64 `json:"ili_percent"`
	SARI          *float64 `json:"sari_percent"`
	LowConfidence bool     `json:"low_confidence"`
	Repairs       []string `json:"repairs,omitempty"`
}
