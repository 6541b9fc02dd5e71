package temporal

import (
	"time"

	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

// MondayOf returns the Monday of d's ISO week.
func MondayOf(d time.Time) time.Time {
	d = utils.DateOnly(d)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// WeekOf builds a Resolution for the ISO week containing d.
func WeekOf(d time.Time) entity.Resolution {
	ref := MondayOf(d)
	year, week := ref.ISOWeek()
	return entity.Resolution{
		ReferenceDate: ref,
		TargetEndDate: ref.AddDate(0, 0, 6),
		ReportWeek:    week,
		ISOYear:       year,
	}
}

// ISOWeekMonday returns the Monday of ISO week `week` of ISO year `year`.
// ok is false for week numbers the year does not have.
func ISOWeekMonday(year, week int) (time.Time, bool) {
	if week < 1 || week > 53 {
		return time.Time{}, false
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := MondayOf(jan4).AddDate(0, 0, (week-1)*7)
	y, w := monday.ISOWeek()
	if y != year || w != week {
		return time.Time{}, false
	}
	return monday, true
}
