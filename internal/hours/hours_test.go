package hours

import (
	"testing"
	"time"
)

func TestResolveNilFallsBackToDefault(t *testing.T) {
	sched := Resolve(nil)
	day := sched.ForWeekday(time.Wednesday)
	if !day.Enabled || day.Start != "09:00" || day.End != "17:00" {
		t.Fatalf("unexpected default day: %+v", day)
	}
}

func TestForDateUsesWeekday(t *testing.T) {
	sched := Default()
	sched.Sunday = DaySchedule{Enabled: false}

	// 2026-03-01 is a Sunday.
	sunday := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if sched.ForDate(sunday).Enabled {
		t.Error("expected Sunday to be disabled")
	}
	monday := sunday.AddDate(0, 0, 1)
	if !sched.ForDate(monday).Enabled {
		t.Error("expected Monday to be enabled")
	}
}

func TestOpenClose(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	day := DaySchedule{Enabled: true, Start: "09:00", End: "17:30"}
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	openAt, closeAt, ok := day.OpenClose(date, loc)
	if !ok {
		t.Fatal("expected ok")
	}
	if openAt.Hour() != 9 || openAt.Minute() != 0 {
		t.Errorf("unexpected open: %s", openAt)
	}
	if closeAt.Hour() != 17 || closeAt.Minute() != 30 {
		t.Errorf("unexpected close: %s", closeAt)
	}
}

func TestOpenCloseDisabledDay(t *testing.T) {
	day := DaySchedule{Enabled: false, Start: "09:00", End: "17:00"}
	if _, _, ok := day.OpenClose(time.Now(), time.UTC); ok {
		t.Fatal("expected disabled day to report not ok")
	}
}

func TestOpenCloseBadClock(t *testing.T) {
	day := DaySchedule{Enabled: true, Start: "9am", End: "17:00"}
	if _, _, ok := day.OpenClose(time.Now(), time.UTC); ok {
		t.Fatal("expected unparseable clock to report not ok")
	}
}

func TestSummaryUniformWeekdays(t *testing.T) {
	sched := Default()
	if got := sched.Summary(); got != "9 AM – 5 PM weekdays" {
		t.Errorf("unexpected summary: %q", got)
	}
}

func TestSummaryVariableWeekdays(t *testing.T) {
	sched := Default()
	sched.Wednesday = DaySchedule{Enabled: true, Start: "10:00", End: "14:00"}
	if got := sched.Summary(); got != "Variable hours — check specific days" {
		t.Errorf("unexpected summary: %q", got)
	}
}

func TestSummaryHalfHour(t *testing.T) {
	half := DaySchedule{Enabled: true, Start: "08:30", End: "16:30"}
	sched := &WeeklySchedule{Monday: half, Tuesday: half, Wednesday: half, Thursday: half, Friday: half}
	if got := sched.Summary(); got != "8:30 AM – 4:30 PM weekdays" {
		t.Errorf("unexpected summary: %q", got)
	}
}
