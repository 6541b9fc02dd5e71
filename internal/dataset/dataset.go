package dataset

import (
	"sort"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
)

// Row is one dataset record plus the CSV fields it was read from, if any.
type Row struct {
	entity.Record
	raw []string
}

// Dataset is the persisted, ordered record collection.
type Dataset struct {
	Rows []Row
}

// FromRecords builds an unsorted dataset of freshly formatted rows.
func FromRecords(recs []entity.Record) *Dataset {
	ds := &Dataset{Rows: make([]Row, 0, len(recs))}
	for _, r := range recs {
		ds.Rows = append(ds.Rows, Row{Record: r})
	}
	return ds
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Records returns the records in row order.
func (d *Dataset) Records() []entity.Record {
	if d == nil {
		return nil
	}
	out := make([]entity.Record, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r.Record
	}
	return out
}

// FilterPathogen returns the rows of one pathogen, order preserved.
func (d *Dataset) FilterPathogen(p constants.Pathogen) *Dataset {
	out := &Dataset{}
	if d == nil {
		return out
	}
	for _, r := range d.Rows {
		if r.Pathogen == p {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Sort orders rows by reference_date, then pathogen, then report_week.
func (d *Dataset) Sort() {
	sort.SliceStable(d.Rows, func(i, j int) bool {
		a, b := d.Rows[i].Record, d.Rows[j].Record
		if !a.ReferenceDate.Equal(b.ReferenceDate) {
			return a.ReferenceDate.Before(b.ReferenceDate)
		}
		if a.Pathogen != b.Pathogen {
			return a.Pathogen < b.Pathogen
		}
		return a.ReportWeek < b.ReportWeek
	})
}

// MergeReport counts what a merge did to the dataset.
type MergeReport struct {
	Mode      constants.MergeMode `json:"mode"`
	Added     int                 `json:"added"`
	Updated   int                 `json:"updated"`
	Unchanged int                 `json:"unchanged"`
	Retained  int                 `json:"retained"`             // existing rows the batch did not touch
	Removed   int                 `json:"removed,omitempty"`    // replace mode only
	Collapsed int                 `json:"collapsed,omitempty"`  // duplicate keys already present in the existing dataset
	BatchDups int                 `json:"batch_dups,omitempty"` // batch records superseded by a later one with the same key
	Total     int                 `json:"total"`
}

// Changed reports whether the merge altered any row.
func (r MergeReport) Changed() bool {
	return r.Added > 0 || r.Updated > 0 || r.Removed > 0 || r.Collapsed > 0
}

// Merge reconciles batch with existing and returns a new sorted dataset; existing is not
// modified. In merge mode a batch record replaces the row with the same identity key and
// all other rows are carried over with their original fields. In replace mode the result
// is the batch alone. Within the batch a later record wins over an earlier one.
func Merge(existing *Dataset, batch []entity.Record, mode constants.MergeMode) (*Dataset, MergeReport) {
	rep := MergeReport{Mode: mode}

	incoming := make(map[entity.RecordKey]entity.Record, len(batch))
	order := make([]entity.RecordKey, 0, len(batch))
	for _, r := range batch {
		k := r.Key()
		if _, dup := incoming[k]; dup {
			rep.BatchDups++
		} else {
			order = append(order, k)
		}
		incoming[k] = r
	}

	out := &Dataset{}
	if mode == constants.MergeModeReplace {
		rep.Removed = existing.Len()
		for _, k := range order {
			out.Rows = append(out.Rows, Row{Record: incoming[k]})
			rep.Added++
		}
		out.Sort()
		rep.Total = out.Len()
		return out, rep
	}

	// Later duplicates in the existing file win, like any other write.
	current := make(map[entity.RecordKey]int)
	if existing != nil {
		for _, row := range existing.Rows {
			k := row.Key()
			if i, dup := current[k]; dup {
				out.Rows[i] = row
				rep.Collapsed++
				continue
			}
			current[k] = len(out.Rows)
			out.Rows = append(out.Rows, row)
		}
	}
	rep.Retained = len(out.Rows)

	for _, k := range order {
		rec := incoming[k]
		i, ok := current[k]
		switch {
		case !ok:
			current[k] = len(out.Rows)
			out.Rows = append(out.Rows, Row{Record: rec})
			rep.Added++
		case out.Rows[i].SameValues(rec):
			rep.Unchanged++
			rep.Retained--
		default:
			out.Rows[i] = Row{Record: rec}
			rep.Updated++
			rep.Retained--
		}
	}

	out.Sort()
	rep.Total = out.Len()
	return out, rep
}
