package temporal

import (
	"regexp"
	"strconv"
	"time"

	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

// matcher turns one regexp hit into a date. week is the week number the text states, 0 if none.
type matcher struct {
	name  string
	re    *regexp.Regexp
	build func(g []int) (d time.Time, week int, ok bool)
}

const (
	sep = `\s*(?:[-–—~至到]|\s)\s*`
	md  = `(\d{1,2})月(\d{1,2})日`
	ymd = `(\d{4})年(\d{1,2})月(\d{1,2})日`
)

// Text matchers in priority order; the first hit wins. Inputs are already width-folded,
// so full-width brackets and colons appear as ASCII.
var textMatchers = []matcher{
	{
		// 2025年第1周(2024年12月30日-2025年1月5日)
		name: "week_range_cross_year",
		re:   regexp.MustCompile(`(\d{4})年第(\d{1,2})周\s*\(\s*` + ymd + sep + ymd + `\s*\)`),
		build: func(g []int) (time.Time, int, bool) {
			d, ok := utils.Date(g[3], g[4], g[5])
			return d, g[2], ok
		},
	},
	{
		// 2025年第6周(2025年2月3日-2月9日)
		name: "week_range_start_year",
		re:   regexp.MustCompile(`(\d{4})年第(\d{1,2})周\s*\(\s*` + ymd + sep + md + `\s*\)`),
		build: func(g []int) (time.Time, int, bool) {
			d, ok := utils.Date(g[3], g[4], g[5])
			return d, g[2], ok
		},
	},
	{
		// 2024年第46周(11月11日-11月17日)
		name: "week_range",
		re:   regexp.MustCompile(`(\d{4})年第(\d{1,2})周\s*\(\s*` + md + sep + md + `\s*\)`),
		build: func(g []int) (time.Time, int, bool) {
			year := g[1]
			// week 1 that starts in December began in the previous calendar year
			if g[2] == 1 && g[3] == 12 {
				year--
			}
			d, ok := utils.Date(year, g[3], g[4])
			return d, g[2], ok
		},
	},
	{
		// 2025年5月(第19周-22周,5月5日-6月1日)
		name: "monthly_range",
		re:   regexp.MustCompile(`(\d{4})年(\d{1,2})月\s*\(\s*第(\d{1,2})周` + sep + `第?(\d{1,2})周\s*,\s*` + md + sep + md + `\s*\)`),
		build: func(g []int) (time.Time, int, bool) {
			d, ok := utils.Date(g[1], g[5], g[6])
			return d, g[3], ok
		},
	},
	{
		name: "year_week",
		re:   regexp.MustCompile(`(\d{4})年第(\d{1,2})周`),
		build: func(g []int) (time.Time, int, bool) {
			d, ok := ISOWeekMonday(g[1], g[2])
			return d, g[2], ok
		},
	},
	{
		name: "english_week",
		re:   regexp.MustCompile(`(?i)\bweek\s*(\d{1,2})\s*(?:,|of)?\s*(\d{4})\b`),
		build: func(g []int) (time.Time, int, bool) {
			d, ok := ISOWeekMonday(g[2], g[1])
			return d, g[1], ok
		},
	},
	{
		name:  "published_cn",
		re:    regexp.MustCompile(`(?:发布日期|更新日期|发布时间)\s*:?\s*` + ymd),
		build: dateAt(1),
	},
	{
		name:  "published_iso",
		re:    regexp.MustCompile(`(?:发布日期|更新日期|发布时间|时间)\s*:\s*(\d{4})-(\d{1,2})-(\d{1,2})`),
		build: dateAt(1),
	},
	{
		name:  "published_en",
		re:    regexp.MustCompile(`(?i)published\s+on\s*:?\s*(\d{4})-(\d{1,2})-(\d{1,2})`),
		build: dateAt(1),
	},
	{
		name:  "monitoring_period",
		re:    regexp.MustCompile(`(?i)(?:monitoring\s+period|监测(?:时间|周期))\s*:?\s*(\d{4})(?:-|年)(\d{1,2})(?:-|月)(\d{1,2})`),
		build: dateAt(1),
	},
	{
		name:  "date_cn",
		re:    regexp.MustCompile(ymd),
		build: dateAt(1),
	},
}

// publicationMatchers are the subset whose hit is a publication date.
var publicationMatchers = []string{"published_cn", "published_iso", "published_en"}

func dateAt(i int) func(g []int) (time.Time, int, bool) {
	return func(g []int) (time.Time, int, bool) {
		d, ok := utils.Date(g[i], g[i+1], g[i+2])
		return d, 0, ok
	}
}

// groups converts a FindStringSubmatch result to ints; index 0 is left as 0.
func groups(m []string) []int {
	out := make([]int, len(m))
	for i := 1; i < len(m); i++ {
		n, err := strconv.Atoi(m[i])
		if err != nil {
			n = -1
		}
		out[i] = n
	}
	return out
}

var (
	reDigits       = regexp.MustCompile(`\d+`)
	reDashedInName = regexp.MustCompile(`(\d{4})[-_.](\d{1,2})[-_.](\d{1,2})`)
)
