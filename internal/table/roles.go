package table

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	iliKeys    = []string{"门急诊", "流感样", "ILI", "门诊"}
	sariKeys   = []string{"住院", "严重急性", "SARI"}
	labelKeys  = []string{"病原", "pathogen", "Pathogen", "名称"}
	changeKeys = []string{"较上周", "上周", "变化", "change", "Change"}

	reHeaderWeek = regexp.MustCompile(`第\s*(\d{1,2})\s*周`)
)

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// headerColumns joins the header rows column by column. Blank cells in all but the last
// header row inherit their left neighbour, which is how merged group headers come out of
// pipe tables ("| 门急诊流感样病例 | |").
func headerColumns(header [][]string, width int) []string {
	cols := make([]string, width)
	for r, row := range header {
		filled := make([]string, width)
		for j := 0; j < width; j++ {
			if j < len(row) {
				filled[j] = row[j]
			}
			if filled[j] == "" && j > 0 && r < len(header)-1 {
				filled[j] = filled[j-1]
			}
		}
		for j := 0; j < width; j++ {
			if filled[j] == "" {
				continue
			}
			if cols[j] != "" {
				cols[j] += " "
			}
			cols[j] += filled[j]
		}
	}
	return cols
}

// ResolveRoles picks the label, ILI and SARI columns from the header. Each rate group may span
// a current-week column and a week-over-week change column; the current week is taken.
// Without a usable header the positional layout label|ILI..|SARI.. is assumed.
func ResolveRoles(header [][]string, width int) (Roles, int) {
	roles := positionalRoles(width)
	if len(header) == 0 || width < minCells {
		return roles, 0
	}

	cols := headerColumns(header, width)
	label := 0
	for j, c := range cols {
		if containsAny(c, labelKeys) {
			label = j
			break
		}
	}

	var iliCols, sariCols []int
	for j, c := range cols {
		if j == label {
			continue
		}
		isILI, isSARI := containsAny(c, iliKeys), containsAny(c, sariKeys)
		switch {
		case isILI && !isSARI:
			iliCols = append(iliCols, j)
		case isSARI && !isILI:
			sariCols = append(sariCols, j)
		}
	}

	ili, okILI := currentWeekColumn(cols, iliCols)
	sari, okSARI := currentWeekColumn(cols, sariCols)
	if okILI && okSARI {
		roles = Roles{Label: label, ILI: ili, SARI: sari, Width: width, FromHeader: true}
	}
	return roles, headerWeek(cols)
}

func positionalRoles(width int) Roles {
	if width < minCells {
		width = minCells
	}
	return Roles{Label: 0, ILI: 1, SARI: 1 + (width-1)/2, Width: width}
}

func currentWeekColumn(cols []string, group []int) (int, bool) {
	if len(group) == 0 {
		return 0, false
	}
	best, bestWeek := -1, -1
	for _, j := range group {
		if containsAny(cols[j], changeKeys) {
			continue
		}
		w := maxWeek(cols[j])
		if w > bestWeek {
			best, bestWeek = j, w
		}
	}
	if best < 0 {
		return group[0], true
	}
	return best, true
}

func maxWeek(s string) int {
	best := 0
	for _, m := range reHeaderWeek.FindAllStringSubmatch(s, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > best {
			best = n
		}
	}
	return best
}

func headerWeek(cols []string) int {
	best := 0
	for _, c := range cols {
		if containsAny(c, changeKeys) {
			continue
		}
		if w := maxWeek(c); w > best {
			best = w
		}
	}
	return best
}

// Fingerprint reports whether a header names both rate groups.
func Fingerprint(header [][]string) bool {
	var b strings.Builder
	for _, row := range header {
		b.WriteString(strings.Join(row, " "))
		b.WriteString(" ")
	}
	s := b.String()
	return containsAny(s, iliKeys) && containsAny(s, sariKeys)
}
