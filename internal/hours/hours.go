// Package hours resolves a tenant's weekly business-hours schedule.
package hours

import (
	"fmt"
	"time"
)

// DaySchedule is a single weekday's entry. Start and End use 24-hour "HH:MM".
type DaySchedule struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// WeeklySchedule holds one entry per weekday, keyed by day name in JSON to
// match the stored tenant settings document.
type WeeklySchedule struct {
	Sunday    DaySchedule `json:"sunday"`
	Monday    DaySchedule `json:"monday"`
	Tuesday   DaySchedule `json:"tuesday"`
	Wednesday DaySchedule `json:"wednesday"`
	Thursday  DaySchedule `json:"thursday"`
	Friday    DaySchedule `json:"friday"`
	Saturday  DaySchedule `json:"saturday"`
}

// DefaultDay is used for every weekday when a tenant has no schedule configured.
var DefaultDay = DaySchedule{Enabled: true, Start: "09:00", End: "17:00"}

// Default returns the fallback weekly schedule: open 09:00-17:00 every day.
func Default() *WeeklySchedule {
	return &WeeklySchedule{
		Sunday:    DefaultDay,
		Monday:    DefaultDay,
		Tuesday:   DefaultDay,
		Wednesday: DefaultDay,
		Thursday:  DefaultDay,
		Friday:    DefaultDay,
		Saturday:  DefaultDay,
	}
}

// Resolve maps a possibly-nil stored schedule to a usable one. The nil
// fallback happens here, once, instead of at every call site.
func Resolve(sched *WeeklySchedule) *WeeklySchedule {
	if sched == nil {
		return Default()
	}
	return sched
}

// ForWeekday returns the entry for a weekday. time.Weekday already uses the
// 0=Sunday convention the stored schedule is keyed by.
func (s *WeeklySchedule) ForWeekday(day time.Weekday) DaySchedule {
	switch day {
	case time.Sunday:
		return s.Sunday
	case time.Monday:
		return s.Monday
	case time.Tuesday:
		return s.Tuesday
	case time.Wednesday:
		return s.Wednesday
	case time.Thursday:
		return s.Thursday
	case time.Friday:
		return s.Friday
	default:
		return s.Saturday
	}
}

// ForDate returns the schedule entry for a calendar date's weekday.
func (s *WeeklySchedule) ForDate(date time.Time) DaySchedule {
	return s.ForWeekday(date.Weekday())
}

// OpenClose converts a day's HH:MM fields into instants on the given date in
// loc. ok is false when the day is disabled or a field does not parse.
func (d DaySchedule) OpenClose(date time.Time, loc *time.Location) (openAt, closeAt time.Time, ok bool) {
	if !d.Enabled {
		return time.Time{}, time.Time{}, false
	}
	openH, openM, err := parseClock(d.Start)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	closeH, closeM, err := parseClock(d.End)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	y, m, day := date.In(loc).Date()
	openAt = time.Date(y, m, day, openH, openM, 0, 0, loc)
	closeAt = time.Date(y, m, day, closeH, closeM, 0, 0, loc)
	return openAt, closeAt, true
}

func parseClock(v string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, fmt.Errorf("hours: parse clock %q: %w", v, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Summary collapses the five weekday entries into a single human-readable
// string when they all share identical hours.
func (s *WeeklySchedule) Summary() string {
	weekdays := []DaySchedule{s.Monday, s.Tuesday, s.Wednesday, s.Thursday, s.Friday}
	first := weekdays[0]
	for _, d := range weekdays[1:] {
		if d != first {
			return "Variable hours — check specific days"
		}
	}
	if !first.Enabled {
		return "Closed weekdays"
	}
	return fmt.Sprintf("%s – %s weekdays", clockDisplay(first.Start), clockDisplay(first.End))
}

func clockDisplay(v string) string {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return v
	}
	if t.Minute() == 0 {
		return t.Format("3 PM")
	}
	return t.Format("3:04 PM")
}
