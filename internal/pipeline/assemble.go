package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pathogen"
)

// Conflict is a pathogen that appeared twice in one document with different rates.
type Conflict struct {
	Pathogen    constants.Pathogen `json:"pathogen"`
	KeptRow     int                `json:"kept_row"`
	DroppedRow  int                `json:"dropped_row"`
	KeptILI     *float64           `json:"kept_ili_percent"`
	KeptSARI    *float64           `json:"kept_sari_percent"`
	DroppedILI  *float64           `json:"dropped_ili_percent"`
	DroppedSARI *float64           `json:"dropped_sari_percent"`
}

// Assembly is the record set of one document.
type Assembly struct {
	Records      []entity.Record          `json:"records"`
	Unrecognized []entity.UnrecognizedRow `json:"unrecognized,omitempty"`
	Conflicts    []Conflict               `json:"conflicts,omitempty"`
	Duplicates   int                      `json:"duplicates"`
	Invalid      []string                 `json:"invalid,omitempty"`
}

// Assembler joins a document's resolution with its candidates through the normalizer.
type Assembler struct {
	normalizer *pathogen.Normalizer
	logger     *slog.Logger
}

func NewAssembler(normalizer *pathogen.Normalizer, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{normalizer: normalizer, logger: logger}
}

// Assemble emits one record per recognized pathogen in candidate order. A repeated
// pathogen keeps its first row; differing values are reported as a Conflict.
func (a *Assembler) Assemble(ctx context.Context, doc entity.Document, res entity.Resolution, candidates []entity.Candidate, source constants.RecordSource) Assembly {
	log := common.LoggerFrom(ctx, a.logger)
	out := Assembly{}
	type firstSeen struct{ record, row int }
	seen := make(map[constants.Pathogen]firstSeen, len(candidates))

	for _, c := range candidates {
		m := a.normalizer.Normalize(c.RawLabel)
		if !m.Recognized() {
			out.Unrecognized = append(out.Unrecognized, entity.UnrecognizedRow{
				RowIndex: c.RowIndex,
				RawLabel: c.RawLabel,
				ILI:      c.ILI,
				SARI:     c.SARI,
			})
			log.Info("pathogen.unrecognized", "row", c.RowIndex, "label", c.RawLabel)
			continue
		}

		rec := entity.Record{
			ReferenceDate: res.ReferenceDate,
			TargetEndDate: res.TargetEndDate,
			ReportWeek:    res.ReportWeek,
			Pathogen:      m.Pathogen,
			ILIPercent:    c.ILI,
			SARIPercent:   c.SARI,
			DocumentID:    doc.ID,
			Source:        source,
		}

		if first, dup := seen[m.Pathogen]; dup {
			out.Duplicates++
			kept := out.Records[first.record]
			if !kept.SameValues(rec) {
				out.Conflicts = append(out.Conflicts, Conflict{
					Pathogen:    m.Pathogen,
					KeptRow:     first.row,
					DroppedRow:  c.RowIndex,
					KeptILI:     kept.ILIPercent,
					KeptSARI:    kept.SARIPercent,
					DroppedILI:  c.ILI,
					DroppedSARI: c.SARI,
				})
				log.Warn("assemble.conflict", "pathogen", m.Pathogen, "row", c.RowIndex, "label", c.RawLabel)
			}
			continue
		}

		if err := rec.Validate(); err != nil {
			out.Invalid = append(out.Invalid, err.Error())
			log.Warn("assemble.invalid", "pathogen", m.Pathogen, "row", c.RowIndex, "error", err)
			continue
		}
		seen[m.Pathogen] = firstSeen{record: len(out.Records), row: c.RowIndex}
		out.Records = append(out.Records, rec)
	}

	log.Debug("assemble.ok",
		"records", len(out.Records),
		"unrecognized", len(out.Unrecognized),
		"duplicates", out.Duplicates,
		"conflicts", len(out.Conflicts))
	return out
}
