package table

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

var (
	// 表1, 表 1, 表一, and the OCR confusions 表l / 表I; not 表10 or 表12.
	reAnchor = regexp.MustCompile(`表\s*[1lI一](?:\D|$)`)
	// an explicit ILI/SARI section marker, as a whole word
	reSectionMarker = regexp.MustCompile(`(?:^|[^A-Za-z])(?:ILI|SARI)(?:[^A-Za-z]|$)`)
	reNumericCell   = regexp.MustCompile(`^[+-]?\d+(?:[.,]\d+)?\s*%?$`)
)

const (
	// lines scanned after an anchor for the first table row
	anchorLookahead = 8
	maxHeaderRows   = 3
)

// Locator finds the pathogen positivity table in normalized document text.
type Locator struct {
	logger *slog.Logger
}

func NewLocator(logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{logger: logger}
}

// Locate returns the table under the preferred 表1 anchor, or, when no anchor yields a table,
// the first table whose header fingerprints as ILI/SARI. A table needs at least one data row
// below its header. The error wraps common.ErrTableNotFound.
func (l *Locator) Locate(text string) (*Table, error) {
	lines := strings.Split(text, "\n")

	anchors := anchorOrder(lines)
	for _, a := range anchors {
		t := l.tableAfter(lines, a)
		if t == nil {
			l.logger.Debug("table.anchor.no_block", "line", a+1)
			continue
		}
		t.AnchorLine = a
		return t, nil
	}

	for i := 0; i < len(lines); i++ {
		t, end := blockAt(lines, i)
		if t == nil {
			continue
		}
		if Fingerprint(t.Header) {
			t.AnchorLine = -1
			l.logger.Debug("table.locate.fingerprint", "line", i+1)
			return t, nil
		}
		i = end
	}

	l.logger.Info("table.locate.not_found", "anchors", len(anchors), "lines", len(lines))
	if len(anchors) > 0 {
		return nil, fmt.Errorf("%w: %d anchor(s) without data rows", common.ErrTableNotFound, len(anchors))
	}
	return nil, fmt.Errorf("%w: no anchor and no ILI/SARI header", common.ErrTableNotFound)
}

// anchorOrder lists anchor lines, those at or after the first ILI/SARI marker first.
func anchorOrder(lines []string) []int {
	marker := -1
	var all []int
	for i, line := range lines {
		if marker < 0 && reSectionMarker.MatchString(line) {
			marker = i
		}
		if reAnchor.MatchString(line) {
			all = append(all, i)
		}
	}
	if marker < 0 {
		return all
	}
	var after, before []int
	for _, a := range all {
		if a >= marker {
			after = append(after, a)
		} else {
			before = append(before, a)
		}
	}
	return append(after, before...)
}

func (l *Locator) tableAfter(lines []string, anchor int) *Table {
	// the table may open on the anchor line itself (inline <table>)
	if t, _ := blockAt(lines, anchor); t != nil {
		return t
	}
	for i := anchor + 1; i < len(lines) && i <= anchor+anchorLookahead; i++ {
		line := lines[i]
		if isHeading(line) || reAnchor.MatchString(line) {
			return nil
		}
		if isBlank(line) {
			continue
		}
		if t, _ := blockAt(lines, i); t != nil {
			return t
		}
		if isPipeRow(line) || reTableOpen.MatchString(line) {
			// a table starts here but has no data rows
			return nil
		}
	}
	return nil
}

// blockAt reads a table starting on lines[i] and returns it with the last line it consumed.
// nil means no table with data rows starts there.
func blockAt(lines []string, i int) (*Table, int) {
	var (
		grid   [][]string
		end    = i
		format Format
	)
	switch {
	case reTableOpen.MatchString(lines[i]):
		frag, last, ok := htmlFragment(lines, i)
		if !ok {
			return nil, i
		}
		g, err := parseHTMLTable(frag)
		if err != nil {
			return nil, last
		}
		grid, end, format = g, last, FormatHTML
	case isPipeRow(lines[i]) && !isSeparatorRow(lines[i]):
		grid, end = readPipeBlock(lines, i)
		format = FormatPipe
	default:
		return nil, i
	}
	return split(grid, format), end
}

// split separates leading header rows from data rows. Header rows have no numeric cell and
// end early at the first row that reads as a pathogen row with only null rates.
func split(grid [][]string, format Format) *Table {
	if len(grid) == 0 {
		return nil
	}
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	if width < minCells {
		return nil
	}

	h := 0
	for h < len(grid) && h < maxHeaderRows && !hasNumericCell(grid[h]) && !isNullDataRow(grid[h], h > 0) {
		h++
	}
	if h >= len(grid) {
		return nil
	}

	t := &Table{Format: format, Header: grid[:h], Width: width}
	for i, row := range grid[h:] {
		t.Rows = append(t.Rows, entity.RawTableRow{Index: i, Cells: row})
	}
	t.Roles, t.HeaderWeek = ResolveRoles(t.Header, width)
	return t
}

// isNullDataRow reports whether row has a non-header text label and nothing but numbers or
// null tokens after it. All-blank value cells only count once a header row has been seen.
func isNullDataRow(row []string, afterHeader bool) bool {
	if len(row) < 2 {
		return false
	}
	label := utils.NormalizeCell(row[0])
	if label == "" || utils.IsNullToken(label) || reNumericCell.MatchString(label) || isHeaderLabel(label) {
		return false
	}
	blank := true
	for _, c := range row[1:] {
		v := strings.TrimSpace(strings.ReplaceAll(utils.NormalizeCell(c), "%", ""))
		switch {
		case v == "":
		case utils.IsNullToken(v), reNumericCell.MatchString(v):
			blank = false
		default:
			return false
		}
	}
	return !blank || afterHeader
}

func isHeaderLabel(label string) bool {
	return containsAny(label, labelKeys) ||
		containsAny(label, iliKeys) ||
		containsAny(label, sariKeys) ||
		containsAny(label, changeKeys) ||
		reHeaderWeek.MatchString(label)
}

func hasNumericCell(row []string) bool {
	for j, c := range row {
		if j == 0 {
			continue
		}
		if reNumericCell.MatchString(strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}
