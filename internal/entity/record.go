package entity

import (
	"time"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
)

// Record is one row of the persisted dataset.
type Record struct {
	ReferenceDate time.Time          `json:"reference_date"`
	TargetEndDate time.Time          `json:"target_end_date"`
	ReportWeek    int                `json:"report_week"`
	Pathogen      constants.Pathogen `json:"pathogen"`
	ILIPercent    *float64           `json:"ili_percent"`
	SARIPercent   *float64           `json:"sari_percent"`

	// Traceability only; never serialized to the dataset.
	DocumentID string                 `json:"document_id,omitempty"`
	Source     constants.RecordSource `json:"source,omitempty"`
}

// RecordKey is the dedup identity of a record.
type RecordKey struct {
	ReferenceDate string
	ReportWeek    int
	Pathogen      constants.Pathogen
}

func (r Record) Key() RecordKey {
	return RecordKey{
		ReferenceDate: r.ReferenceDate.Format(constants.DateLayout),
		ReportWeek:    r.ReportWeek,
		Pathogen:      r.Pathogen,
	}
}

// SameValues compares the serialized fields of two records.
func (r Record) SameValues(o Record) bool {
	return r.ReferenceDate.Equal(o.ReferenceDate) &&
		r.TargetEndDate.Equal(o.TargetEndDate) &&
		r.ReportWeek == o.ReportWeek &&
		r.Pathogen == o.Pathogen &&
		equalRate(r.ILIPercent, o.ILIPercent) &&
		equalRate(r.SARIPercent, o.SARIPercent)
}

// Validate checks the dataset invariants of a single record.
func (r Record) Validate() error {
	v := common.NewValidator().
		Field("reference_date", r.ReferenceDate, common.Required, common.Weekday(time.Monday)).
		Field("target_end_date", r.TargetEndDate, common.Required, common.Weekday(time.Sunday)).
		Field("report_week", r.ReportWeek, common.WeekRange).
		Field("pathogen", string(r.Pathogen), common.Required).
		Field("ili_percent", r.ILIPercent, common.Percent).
		Field("sari_percent", r.SARIPercent, common.Percent)
	if !r.ReferenceDate.IsZero() && !r.TargetEndDate.Equal(r.ReferenceDate.AddDate(0, 0, 6)) {
		v.Field("target_end_date", r.TargetEndDate, func(name string, value interface{}) *common.ValidationError {
			return &common.ValidationError{Field: name, Value: r.TargetEndDate.Format(constants.DateLayout), Message: "must be reference_date + 6 days"}
		})
	}
	return v.Error()
}

// UnrecognizedRow is kept for audit when a label does not normalize.
type UnrecognizedRow struct {
	RowIndex int      `json:"row_index"`
	RawLabel string   `json:"raw_label"`
	ILI      *float64 `json:"ili_percent"`
	SARI     *float64 `json:"sari_percent"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func equalRate(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
