package slots

import (
	"strings"
	"time"
)

// Date-preference presets are the only caller-facing vocabulary for "when to
// look"; the tool-call boundary never accepts an arbitrary range.
const (
	PreferenceToday    = "today"
	PreferenceTomorrow = "tomorrow"
	PreferenceThisWeek = "this_week"
	PreferenceNextWeek = "next_week"
)

// RangeForPreference maps a caller's date preference onto a concrete search
// window in the tenant's timezone. Unknown preferences get the default
// two-week window.
func RangeForPreference(pref string, now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	nextHour := ceilHour(now)

	switch strings.ToLower(strings.TrimSpace(pref)) {
	case PreferenceToday:
		return nextHour, endOfDay(now, loc)
	case PreferenceTomorrow:
		tomorrow := startOfDay(now, loc).AddDate(0, 0, 1)
		return tomorrow, endOfDay(tomorrow, loc)
	case PreferenceThisWeek:
		return nextHour, endOfDay(upcomingSunday(now, loc), loc)
	default:
		// next_week and anything unrecognized: next hour through 14 days out.
		return nextHour, endOfDay(now.AddDate(0, 0, 14), loc)
	}
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}

func upcomingSunday(t time.Time, loc *time.Location) time.Time {
	day := startOfDay(t, loc)
	offset := (7 - int(day.Weekday())) % 7
	if offset == 0 {
		offset = 7
	}
	return day.AddDate(0, 0, offset)
}
