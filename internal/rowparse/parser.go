package rowparse

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/table"
	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

// Skip reasons.
const (
	SkipEmptyRow  = "empty_row"
	SkipNoLabel   = "no_label"
	SkipSummary   = "summary_row"
	SkipHeader    = "header_row"
	SkipAgeGroup  = "age_group"
	SkipFootnote  = "footnote"
	SkipAmbiguous = "ambiguous_columns"
	SkipNoRates   = "no_rates"
)

// Skip records why one table row produced no candidate.
type Skip struct {
	RowIndex int    `json:"row_index"`
	Label    string `json:"label,omitempty"`
	Reason   string `json:"reason"`
}

// SkipError is returned by ParseRow; it wraps common.ErrRowParseSkipped.
type SkipError struct {
	Skip
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("row %d skipped: %s", e.RowIndex, e.Reason)
}

func (e *SkipError) Unwrap() error {
	return common.ErrRowParseSkipped
}

// Result is the outcome of parsing one table.
type Result struct {
	Candidates    []entity.Candidate `json:"candidates"`
	Skipped       []Skip             `json:"skipped,omitempty"`
	LowConfidence int                `json:"low_confidence"`
}

// SkipCounts groups skipped rows by reason.
func (r Result) SkipCounts() map[string]int {
	counts := make(map[string]int, len(r.Skipped))
	for _, s := range r.Skipped {
		counts[s.Reason]++
	}
	return counts
}

// Parser turns located table rows into candidates.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// rowCells is a row after column roles have been applied.
type rowCells struct {
	index int
	label string
	ili   Rate
	sari  Rate
}

// ParseTable parses every data row of t. Rows that cannot yield a candidate are
// skipped and counted; they never fail the table.
func (p *Parser) ParseTable(t *table.Table) Result {
	var res Result
	if t == nil {
		return res
	}

	parsed := make([]rowCells, 0, len(t.Rows))
	for _, row := range t.Rows {
		rc, reason := layout(row, t.Roles)
		if reason != "" {
			res.Skipped = append(res.Skipped, Skip{RowIndex: row.Index, Label: rc.label, Reason: reason})
			p.logger.Debug("rowparse.skip", "row", row.Index, "label", rc.label, "reason", reason)
			continue
		}
		parsed = append(parsed, rc)
	}

	iliSuspects := magnitudeSuspects(parsed, func(rc rowCells) Rate { return rc.ili })
	sariSuspects := magnitudeSuspects(parsed, func(rc rowCells) Rate { return rc.sari })

	for i, rc := range parsed {
		c := candidate(rc, iliSuspects[i], sariSuspects[i])
		if c.ILI == nil && c.SARI == nil {
			res.Skipped = append(res.Skipped, Skip{RowIndex: rc.index, Label: rc.label, Reason: SkipNoRates})
			p.logger.Debug("rowparse.skip", "row", rc.index, "label", rc.label, "reason", SkipNoRates, "repairs", c.Repairs)
			continue
		}
		if c.LowConfidence {
			res.LowConfidence++
			p.logger.Info("rowparse.low_confidence", "row", rc.index, "label", rc.label, "repairs", c.Repairs)
		}
		res.Candidates = append(res.Candidates, c)
	}

	p.logger.Debug("rowparse.table",
		"rows", len(t.Rows),
		"candidates", len(res.Candidates),
		"skipped", len(res.Skipped),
		"low_confidence", res.LowConfidence)
	return res
}

// ParseRow parses a single row without column context, so the magnitude check
// that needs peer values never fires.
func (p *Parser) ParseRow(row entity.RawTableRow, roles table.Roles) (entity.Candidate, error) {
	rc, reason := layout(row, roles)
	if reason != "" {
		return entity.Candidate{}, &SkipError{Skip{RowIndex: row.Index, Label: rc.label, Reason: reason}}
	}
	c := candidate(rc, false, false)
	if c.ILI == nil && c.SARI == nil {
		return entity.Candidate{}, &SkipError{Skip{RowIndex: row.Index, Label: rc.label, Reason: SkipNoRates}}
	}
	return c, nil
}

// layout applies the column roles to a row. A row as wide as the header uses the
// roles directly; any other width is aligned from the right, which only works
// when the label is the sole text cell.
func layout(row entity.RawTableRow, roles table.Roles) (rowCells, string) {
	rc := rowCells{index: row.Index}
	cells := make([]string, len(row.Cells))
	blank := true
	for i, c := range row.Cells {
		cells[i] = utils.NormalizeCell(c)
		if cells[i] != "" {
			blank = false
		}
	}
	if blank {
		return rc, SkipEmptyRow
	}

	width := roles.Width
	if width == 0 {
		width = len(cells)
		roles = table.Roles{Label: 0, ILI: 1, SARI: 1 + (width-1)/2, Width: width}
	}

	labelIdx := -1
	if len(cells) == width && roles.Label < len(cells) && isLabel(cells[roles.Label]) {
		labelIdx = roles.Label
	} else {
		for i, c := range cells {
			if isLabel(c) {
				labelIdx = i
				break
			}
		}
	}
	if labelIdx < 0 {
		return rc, SkipNoLabel
	}
	rc.label = cells[labelIdx]
	if reason := skipLabel(rc.label); reason != "" {
		return rc, reason
	}

	cellAt := func(role int) string {
		idx := role
		if len(cells) != width {
			idx = len(cells) - 1 - (width - 1 - role)
		}
		if idx <= labelIdx || idx >= len(cells) {
			return ""
		}
		return cells[idx]
	}

	if len(cells) != width {
		for _, c := range cells[labelIdx+1:] {
			if isLabel(c) {
				return rc, SkipAmbiguous
			}
		}
	}

	rc.ili = ParseRate(cellAt(roles.ILI))
	rc.sari = ParseRate(cellAt(roles.SARI))
	return rc, ""
}

// isLabel reports whether c is text rather than a number or a null token.
// Letters other than the OCR digit look-alikes make a cell text even when
// noise stripping would leave a number behind (第36周).
func isLabel(c string) bool {
	if c == "" || isNull(c) {
		return false
	}
	if strings.ContainsFunc(c, func(r rune) bool {
		return unicode.IsLetter(r) && !strings.ContainsRune("OoIl", r)
	}) {
		return true
	}
	return !IsNumeric(c)
}

func skipLabel(label string) string {
	switch {
	case strings.Contains(label, "合计"), strings.Contains(label, "总计"), strings.Contains(label, "小计"):
		return SkipSummary
	case strings.Contains(label, "病原体"), strings.HasPrefix(label, "第"):
		return SkipHeader
	case strings.Contains(label, "岁"):
		return SkipAgeGroup
	case strings.HasPrefix(label, "注"), strings.HasPrefix(label, "备注"), startsWithCircled(label):
		return SkipFootnote
	}
	return ""
}

func startsWithCircled(s string) bool {
	for _, r := range s {
		return r >= '①' && r <= '⑳'
	}
	return false
}

// magnitudeSuspects flags integer values far above a column that is otherwise
// written with decimals, the usual trace of an OCR-dropped decimal point.
func magnitudeSuspects(rows []rowCells, pick func(rowCells) Rate) []bool {
	out := make([]bool, len(rows))
	var decimals []float64
	valued := 0
	for _, rc := range rows {
		r := pick(rc)
		if r.Value == nil {
			continue
		}
		valued++
		if r.HasDecimal {
			decimals = append(decimals, *r.Value)
		}
	}
	if len(decimals) < 2 || len(decimals)*4 < valued*3 {
		return out
	}
	sort.Float64s(decimals)
	ceiling := 2 * decimals[len(decimals)-1]
	for i, rc := range rows {
		r := pick(rc)
		if r.Value != nil && !r.HasDecimal && *r.Value >= 10 && *r.Value > ceiling {
			out[i] = true
		}
	}
	return out
}

func candidate(rc rowCells, iliSuspect, sariSuspect bool) entity.Candidate {
	c := entity.Candidate{
		RowIndex: rc.index,
		RawLabel: rc.label,
		ILI:      rc.ili.Value,
		SARI:     rc.sari.Value,
	}
	c.Repairs = append(c.Repairs, notes("ili", rc.ili, iliSuspect)...)
	c.Repairs = append(c.Repairs, notes("sari", rc.sari, sariSuspect)...)
	c.LowConfidence = len(c.Repairs) > 0
	return c
}

func notes(column string, r Rate, suspect bool) []string {
	var out []string
	for _, rep := range r.Repairs {
		out = append(out, column+":"+rep)
	}
	if r.Issue != "" && r.Issue != IssueEmpty {
		out = append(out, column+":"+r.Issue)
	}
	if suspect || r.MissingDecimal {
		out = append(out, column+":"+SuspectMagnitude)
	}
	return out
}

// FromValues builds a candidate from rates that are already numbers, as the fallback
// extractor returns them. They get the same range check as parsed cells.
func FromValues(index int, label string, ili, sari *float64) entity.Candidate {
	return candidate(rowCells{index: index, label: label, ili: valueRate(ili), sari: valueRate(sari)}, false, false)
}

func valueRate(v *float64) Rate {
	if v == nil {
		return Rate{Issue: IssueEmpty}
	}
	x := *v
	if math.IsNaN(x) || x < 0 || x > 100 {
		return Rate{Issue: IssueOutOfRange}
	}
	return Rate{Value: &x, HasDecimal: x != math.Trunc(x)}
}
