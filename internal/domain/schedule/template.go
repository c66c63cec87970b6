package schedule

import (
	"fmt"
	"strings"
	"time"

	"go-clinic-scheduling/internal/domain/entity"
)

const dateLayout = "2006-01-02"

// TimeOfDay is an offset from local midnight, parsed from "HH:MM" or "HH:MM:SS".
// "24:00" is accepted as the end of the day.
type TimeOfDay time.Duration

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" || s == "24:00:00" {
		return TimeOfDay(24 * time.Hour), nil
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), nil
		}
	}
	return 0, fmt.Errorf("%w: invalid time %q, use HH:MM", entity.ErrValidation, s)
}

// On returns the wall-clock instant of the time of day on the given date.
// Building from fields keeps DST days correct.
func (t TimeOfDay) On(date time.Time) time.Time {
	d := time.Duration(t)
	return time.Date(date.Year(), date.Month(), date.Day(),
		int(d/time.Hour), int(d%time.Hour/time.Minute), int(d%time.Minute/time.Second), 0, date.Location())
}

// ParseClockRange parses a start/end pair into a range on date; end must be after start.
func ParseClockRange(date time.Time, start, end string) (Range, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Range{}, err
	}
	if e <= s {
		return Range{}, fmt.Errorf("%w: end time %s must be after start time %s", entity.ErrValidation, end, start)
	}
	return Range{Start: s.On(date), End: e.On(date)}, nil
}

// DayOpenRanges returns the open ranges of one calendar date: the weekly template rows
// for the date's weekday minus the busy overrides dated that day. Rows that fail to parse
// are skipped; they are validated on write.
func DayOpenRanges(date time.Time, template []entity.DoctorAvailability, overrides []entity.BusyOverride) []Range {
	weekday := int(date.Weekday())
	var open []Range
	for _, row := range template {
		if row.DayOfWeek != weekday {
			continue
		}
		r, err := ParseClockRange(date, row.StartTime, row.EndTime)
		if err != nil {
			continue
		}
		open = append(open, r)
	}
	if len(open) == 0 {
		return nil
	}

	key := date.Format(dateLayout)
	var busy []Range
	for _, o := range overrides {
		if o.DateKey() != key {
			continue
		}
		r, err := ParseClockRange(date, o.StartTime, o.EndTime)
		if err != nil {
			continue
		}
		busy = append(busy, r)
	}
	return Subtract(open, busy)
}

// Dates returns each local calendar date from the date of from to the date of to, inclusive.
func Dates(from, to time.Time, loc *time.Location) []time.Time {
	from = from.In(loc)
	to = to.In(loc)
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)

	var days []time.Time
	for !day.After(last) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// FitsOneDate reports whether want lies inside the open time of a single calendar
// date. Open time of adjacent dates is never joined, so a range crossing midnight
// does not fit even when both sides are open.
func FitsOneDate(want Range, loc *time.Location, template []entity.DoctorAvailability, overrides []entity.BusyOverride) bool {
	for _, day := range Dates(want.Start, want.End, loc) {
		if Covers(DayOpenRanges(day, template, overrides), want) {
			return true
		}
	}
	return false
}

// ValidateTemplate checks that ranges of the same weekday parse and do not overlap.
func ValidateTemplate(rows []entity.DoctorAvailability) error {
	ref := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	byDay := make(map[int][]Range)
	for _, row := range rows {
		if row.DayOfWeek < 0 || row.DayOfWeek > 6 {
			return fmt.Errorf("%w: day_of_week must be between 0 and 6", entity.ErrValidation)
		}
		r, err := ParseClockRange(ref, row.StartTime, row.EndTime)
		if err != nil {
			return err
		}
		if OverlapsAny(r, byDay[row.DayOfWeek]) {
			return fmt.Errorf("%w: overlapping ranges on %s", entity.ErrValidation, time.Weekday(row.DayOfWeek))
		}
		byDay[row.DayOfWeek] = append(byDay[row.DayOfWeek], r)
	}
	return nil
}
