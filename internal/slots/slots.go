// Package slots enumerates open appointment slots against business hours and
// a fetched busy-interval list. Slots are an ephemeral projection; nothing
// here is persisted.
package slots

import (
	"time"

	"github.com/frontdeskhq/receptionist-platform/internal/hours"
)

// Interval is a half-open [Start, End) busy window.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the interval overlaps [start, end).
func (iv Interval) Overlaps(start, end time.Time) bool {
	return start.Before(iv.End) && end.After(iv.Start)
}

// Slot is a candidate appointment offered to a caller.
type Slot struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Display string    `json:"display"`
}

// DefaultMaxSlots caps how many slots a single search returns.
const DefaultMaxSlots = 5

// Find enumerates hour-aligned candidate start times between start and end,
// skipping disabled days and candidates that overlap any busy interval.
// First-fit: the cap applies globally across days, and no attempt is made to
// cluster or balance slots.
func Find(start, end time.Time, sched *hours.WeeklySchedule, busy []Interval, duration time.Duration, loc *time.Location, maxSlots int) []Slot {
	if maxSlots <= 0 {
		maxSlots = DefaultMaxSlots
	}
	if loc == nil {
		loc = time.UTC
	}
	sched = hours.Resolve(sched)
	start = start.In(loc)
	end = end.In(loc)

	found := make([]Slot, 0, maxSlots)
	for day := startOfDay(start, loc); !day.After(end); day = day.AddDate(0, 0, 1) {
		entry := sched.ForDate(day)
		openAt, closeAt, ok := entry.OpenClose(day, loc)
		if !ok {
			continue
		}

		candidate := openAt
		if earliest := ceilHour(start); earliest.After(candidate) {
			candidate = earliest
		}
		for ; !candidate.Add(duration).After(closeAt); candidate = candidate.Add(time.Hour) {
			if candidate.After(end) {
				break
			}
			candidateEnd := candidate.Add(duration)
			if overlapsAny(busy, candidate, candidateEnd) {
				continue
			}
			found = append(found, Slot{
				Start:   candidate,
				End:     candidateEnd,
				Display: Display(candidate),
			})
			if len(found) >= maxSlots {
				return found
			}
		}
	}
	return found
}

// Display renders a slot start the way the voice agent speaks it,
// e.g. "Wednesday at 10 AM".
func Display(t time.Time) string {
	if t.Minute() == 0 {
		return t.Format("Monday at 3 PM")
	}
	return t.Format("Monday at 3:04 PM")
}

func overlapsAny(busy []Interval, start, end time.Time) bool {
	for _, iv := range busy {
		if iv.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ceilHour rounds up to the next wall-clock hour. Truncate is not used here
// because it operates on absolute time and misaligns in half-hour-offset zones.
func ceilHour(t time.Time) time.Time {
	if t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location()).Add(time.Hour)
}
