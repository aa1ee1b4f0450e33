package generic

import (
	"time"
)

// =============================================================================
// DATE - Day-granular point in time (requests span whole days)
// =============================================================================

// Date is a calendar day in UTC. All request ranges and balance effective
// dates are day-granular; wall-clock time only appears in audit timestamps.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (d Date) IsWorkday() bool { return !d.IsWeekend() }
func (d Date) IsZero() bool    { return d.Time.IsZero() }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

type Period struct {
	Start Date
	End   Date
}

func NewPeriod(start, end Date) Period { return Period{Start: start, End: end} }

// Valid reports whether End >= Start.
func (p Period) Valid() bool { return !p.End.Before(p.Start) }

// SingleDay reports whether the period covers exactly one calendar day.
func (p Period) SingleDay() bool { return p.Start.Equal(p.End) }

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// CalendarDays is the inclusive day count of the period.
func (p Period) CalendarDays() int {
	return int(p.End.normalize().Sub(p.Start.normalize()).Hours()/24) + 1
}

// WeekdayCount counts Mon-Fri calendar days in the inclusive range.
// This is the request quantity rule: weekends never consume balance.
func (p Period) WeekdayCount() int {
	return p.WorkdayCount(nil, "")
}

// WorkdayCount counts weekdays that are not company holidays.
// A nil calendar counts plain weekdays.
func (p Period) WorkdayCount(calendar HolidayCalendar, orgID OrgID) int {
	if !p.Valid() {
		return 0
	}
	count := 0
	for d := p.Start; !d.After(p.End); d = d.AddDays(1) {
		if d.IsWeekend() {
			continue
		}
		if calendar != nil && calendar.IsHoliday(orgID, d) {
			continue
		}
		count++
	}
	return count
}

// =============================================================================
// HOLIDAY CALENDAR - Org-specific non-working days
// =============================================================================

// Holiday is a company holiday excluded from request quantities.
type Holiday struct {
	ID    string
	OrgID OrgID // empty = global
	Date  Date
	Name  string
}

// HolidayCalendar provides holiday lookup. Checks org-specific holidays
// first, then global ones.
type HolidayCalendar interface {
	IsHoliday(orgID OrgID, date Date) bool
}

// NoHolidays is the calendar used when holiday tracking is disabled.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(OrgID, Date) bool { return false }
