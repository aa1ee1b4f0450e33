package generic_test

import (
	"testing"
	"time"

	"github.com/warp/approval-engine/generic"
)

func TestWeekdayCountFullWeek(t *testing.T) {
	// Monday 2026-03-02 through Friday 2026-03-06
	p := monToFri2026()
	if got := p.WeekdayCount(); got != 5 {
		t.Errorf("Mon-Fri should count 5, got %d", got)
	}
}

func TestWeekdayCountSpansWeekend(t *testing.T) {
	// Friday 2026-03-06 through Monday 2026-03-09: Sat+Sun excluded
	p := generic.NewPeriod(
		generic.NewDate(2026, time.March, 6),
		generic.NewDate(2026, time.March, 9),
	)
	if got := p.WeekdayCount(); got != 2 {
		t.Errorf("Fri-Mon should count 2, got %d", got)
	}
}

func TestWeekdayCountSaturdayOnly(t *testing.T) {
	sat := generic.NewDate(2026, time.March, 7)
	p := generic.NewPeriod(sat, sat)
	if got := p.WeekdayCount(); got != 0 {
		t.Errorf("Saturday-only should count 0, got %d", got)
	}
	if !p.SingleDay() {
		t.Error("one-day period should report SingleDay")
	}
}

func TestWorkdayCountExcludesHolidays(t *testing.T) {
	cal := holidayOn(generic.NewDate(2026, time.March, 4)) // Wednesday
	p := monToFri2026()
	if got := p.WorkdayCount(cal, testOrg); got != 4 {
		t.Errorf("holiday should be excluded, got %d", got)
	}
}

type holidaySet map[string]bool

func holidayOn(dates ...generic.Date) holidaySet {
	s := make(holidaySet)
	for _, d := range dates {
		s[d.String()] = true
	}
	return s
}

func (s holidaySet) IsHoliday(_ generic.OrgID, d generic.Date) bool {
	return s[d.String()]
}

func TestPeriodValidity(t *testing.T) {
	start := generic.NewDate(2026, time.March, 6)
	end := generic.NewDate(2026, time.March, 2)

	if generic.NewPeriod(start, end).Valid() {
		t.Error("end before start must be invalid")
	}
	if !generic.NewPeriod(end, start).Valid() {
		t.Error("forward range must be valid")
	}
	if !generic.NewPeriod(start, start).Valid() {
		t.Error("single-day range must be valid")
	}
}

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate("2026-03-02")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Weekday() != time.Monday {
		t.Errorf("2026-03-02 is a Monday, got %s", d.Weekday())
	}
	if d.String() != "2026-03-02" {
		t.Errorf("round trip mismatch: %s", d)
	}

	if _, err := generic.ParseDate("02/03/2026"); err == nil {
		t.Error("non-ISO format should fail")
	}
}

func TestPeriodContains(t *testing.T) {
	p := monToFri2026()
	if !p.Contains(generic.NewDate(2026, time.March, 4)) {
		t.Error("mid-range day should be contained")
	}
	if p.Contains(generic.NewDate(2026, time.March, 9)) {
		t.Error("day after end should not be contained")
	}
	if p.CalendarDays() != 5 {
		t.Errorf("calendar days should be 5, got %d", p.CalendarDays())
	}
}
