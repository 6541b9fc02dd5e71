package table

import (
	"regexp"
	"strings"
)

var (
	reSeparatorRow = regexp.MustCompile(`^\|?\s*:?-{2,}:?\s*(\|\s*:?-{2,}:?\s*)*\|?$`)
	reHeading      = regexp.MustCompile(`^#{1,6}\s`)
)

const minCells = 3

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isHeading(line string) bool {
	return reHeading.MatchString(strings.TrimSpace(line))
}

func isSeparatorRow(line string) bool {
	return reSeparatorRow.MatchString(strings.TrimSpace(line))
}

func isPipeRow(line string) bool {
	return strings.Count(line, "|") >= 2
}

func splitPipeRow(line string) []string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "|")
	s = strings.TrimSuffix(s, "|")
	parts := strings.Split(s, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// withinDrift reports whether a row of n cells still belongs to a block whose first row had width cells.
func withinDrift(n, width int) bool {
	if n < minCells {
		return false
	}
	return n <= 2*width && 2*n >= width
}

// readPipeBlock collects the pipe rows starting at lines[start] and returns them with the
// index of the last line consumed. It stops at a blank line, a heading, a non-row line or a
// row whose cell count drifts away from the first row.
func readPipeBlock(lines []string, start int) ([][]string, int) {
	if start >= len(lines) || !isPipeRow(lines[start]) {
		return nil, start
	}
	first := splitPipeRow(lines[start])
	if len(first) < minCells {
		return nil, start
	}
	rows := [][]string{first}
	last := start
	for i := start + 1; i < len(lines); i++ {
		line := lines[i]
		if isBlank(line) || isHeading(line) {
			break
		}
		if isSeparatorRow(line) {
			last = i
			continue
		}
		if !isPipeRow(line) {
			break
		}
		cells := splitPipeRow(line)
		if !withinDrift(len(cells), len(first)) {
			break
		}
		rows = append(rows, cells)
		last = i
	}
	return rows, last
}
