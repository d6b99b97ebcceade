// Package schedule holds the per-country operating calendar of an
// organization: weekly opening hours, holidays and exceptional closures.
//
// Configurations are validated at write time so readers never have to defend
// against malformed schedules.
package schedule

import (
	"fmt"
	"time"

	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
)

// TimeOfDay is a wall-clock time within a day, time-zone agnostic.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "15:04" formatted input.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, dErrors.Newf(dErrors.CodeInvalidInput, "invalid time of day %q, want HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes returns the offset from midnight in minutes.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// Date is a calendar date without time-of-day or zone. Holiday and closure
// comparisons happen on local calendar dates, never UTC instants, to avoid
// off-by-one-day errors across the date line.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "2006-01-02" formatted input.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, dErrors.Newf(dErrors.CodeInvalidInput, "invalid date %q, want YYYY-MM-DD", s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf extracts the calendar date of an instant in the given location.
func DateOf(t time.Time, loc *time.Location) Date {
	local := t.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// At anchors a time of day on this date in the given location.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, loc)
}

// Weekday returns the weekday of the date.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// Compare orders dates chronologically: -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return compareInt(d.Year, other.Year)
	case d.Month != other.Month:
		return compareInt(int(d.Month), int(other.Month))
	default:
		return compareInt(d.Day, other.Day)
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Window is an open interval of business hours within a day.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// DayHours describes one weekday: an open flag plus ordered windows.
// A closed day carries no interpretable windows.
type DayHours struct {
	Open    bool
	Windows []Window
}

// Holiday is a recurring or one-off non-working local calendar date.
type Holiday struct {
	Date Date
	Name string
}

// Closure is an exceptional date range during which the organization does not
// operate, distinct from recurring weekly hours. Both bounds are inclusive.
type Closure struct {
	Start  Date
	End    Date
	Reason string
}

// Contains reports whether the date falls within [Start, End].
func (c Closure) Contains(d Date) bool {
	return c.Start.Compare(d) <= 0 && d.Compare(c.End) <= 0
}

// CountryScheduleConfig is an organization's operating calendar for one
// country. One config per (organization, country) pair.
type CountryScheduleConfig struct {
	Organization id.OrganizationID
	Country      id.CountryCode
	Week         map[time.Weekday]DayHours
	Holidays     []Holiday
	Closures     []Closure
	Timezone     string
	UpdatedAt    time.Time
}

// Validate enforces configuration integrity at write time: a loadable time
// zone, strictly increasing windows within each open day, and ordered closure
// bounds. Reading code relies on these invariants.
func (c *CountryScheduleConfig) Validate() error {
	if c.Organization.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "organization is required")
	}
	if c.Country == "" {
		return dErrors.New(dErrors.CodeValidation, "country is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return dErrors.Newf(dErrors.CodeValidation, "unknown time zone %q", c.Timezone)
	}

	for weekday, day := range c.Week {
		if !day.Open {
			if len(day.Windows) > 0 {
				return dErrors.Newf(dErrors.CodeValidation, "%s is closed but has windows", weekday)
			}
			continue
		}
		if len(day.Windows) == 0 {
			return dErrors.Newf(dErrors.CodeValidation, "%s is open but has no windows", weekday)
		}
		prevEnd := -1
		for _, w := range day.Windows {
			if !w.Start.Before(w.End) {
				return dErrors.Newf(dErrors.CodeValidation,
					"%s window %s-%s has non-positive length", weekday, w.Start, w.End)
			}
			if w.Start.Minutes() < prevEnd {
				return dErrors.Newf(dErrors.CodeValidation,
					"%s windows overlap or are out of order at %s", weekday, w.Start)
			}
			prevEnd = w.End.Minutes()
		}
	}

	for _, cl := range c.Closures {
		if cl.Start.Compare(cl.End) > 0 {
			return dErrors.Newf(dErrors.CodeValidation,
				"closure %s..%s has reversed bounds", cl.Start, cl.End)
		}
	}

	return nil
}

// Location loads the configured time zone. Validate guarantees this succeeds
// for stored configs.
func (c *CountryScheduleConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored time zone no longer loadable")
	}
	return loc, nil
}

// DaySchedule is the resolved calendar for one organization, country and date:
// either closed, or open with the day's slot-free windows and the local zone
// needed to convert them to UTC instants.
type DaySchedule struct {
	Date     Date
	Open     bool
	Windows  []Window
	Location *time.Location
}

// Closed builds a closed DaySchedule for the date.
func Closed(d Date) DaySchedule {
	return DaySchedule{Date: d, Open: false, Location: time.UTC}
}
