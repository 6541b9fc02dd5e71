package temporal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

const (
	SourceFilename = "filename"

	minYear = 2000
	maxYear = 2099
)

// Resolver derives the surveillance week of a document.
// The filename date token is the first-priority source; text phrases are the fallback.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve returns the week identity for a document, or an error wrapping
// common.ErrTemporalResolutionFailed when neither the name nor the text carries a usable date.
// text is expected to be normalized with utils.NormalizeText.
func (r *Resolver) Resolve(filename, text string) (entity.Resolution, error) {
	stated := 0
	if _, week, _, ok := FromText(text); ok {
		stated = week
	}

	var (
		d      time.Time
		source string
	)
	if fd, ok := FromFilename(filename); ok {
		d, source = fd, SourceFilename
	} else if td, _, name, ok := FromText(text); ok {
		d, source = td, "text:"+name
	} else {
		r.logger.Warn("temporal.resolve.failed", "file", filepath.Base(filename), "text_len", len(text))
		return entity.Resolution{}, fmt.Errorf("%w: no date token in %q and no date phrase in text",
			common.ErrTemporalResolutionFailed, filepath.Base(filename))
	}

	res := WeekOf(d)
	res.Source = source
	res.StatedWeek = stated
	if pub, ok := PublicationDate(text); ok {
		res.PublicationDate = &pub
	}

	r.logger.Debug("temporal.resolve.ok",
		"file", filepath.Base(filename),
		"source", source,
		"reference_date", res.ReferenceDate.Format("2006-01-02"),
		"report_week", res.ReportWeek,
		"stated_week", stated,
	)
	return res, nil
}

// FromFilename finds exactly one date token in the base name of path.
// Two or more distinct dates make the name ambiguous and the result is false.
func FromFilename(path string) (time.Time, bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	found := map[time.Time]struct{}{}
	var first time.Time
	add := func(y, m, d int) {
		t, ok := utils.Date(y, m, d)
		if !ok || y < minYear || y > maxYear {
			return
		}
		if len(found) == 0 {
			first = t
		}
		found[t] = struct{}{}
	}

	// 8-digit runs only; longer runs (ids, timestamps) are not dates
	for _, run := range reDigits.FindAllString(base, -1) {
		if len(run) != 8 {
			continue
		}
		g := groups([]string{"", run[0:4], run[4:6], run[6:8]})
		add(g[1], g[2], g[3])
	}
	for _, m := range reDashedInName.FindAllStringSubmatch(base, -1) {
		g := groups(m)
		add(g[1], g[2], g[3])
	}

	if len(found) != 1 {
		return time.Time{}, false
	}
	return first, true
}

// FromText runs the prioritized text matchers and returns the first valid hit,
// the week number the text states (0 if the matcher has none) and the matcher name.
func FromText(text string) (time.Time, int, string, bool) {
	for _, m := range textMatchers {
		if d, week, ok := firstValid(m, text); ok {
			return d, week, m.name, true
		}
	}
	return time.Time{}, 0, "", false
}

// PublicationDate returns the date of the first publication phrase in text.
func PublicationDate(text string) (time.Time, bool) {
	for _, m := range textMatchers {
		if !isPublication(m.name) {
			continue
		}
		if d, _, ok := firstValid(m, text); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func firstValid(m matcher, text string) (time.Time, int, bool) {
	for _, hit := range m.re.FindAllStringSubmatch(text, -1) {
		d, week, ok := m.build(groups(hit))
		if !ok || d.Year() < minYear || d.Year() > maxYear {
			continue
		}
		return d, week, true
	}
	return time.Time{}, 0, false
}

func isPublication(name string) bool {
	for _, n := range publicationMatchers {
		if n == name {
			return true
		}
	}
	return false
}
