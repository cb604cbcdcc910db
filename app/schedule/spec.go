package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday tokens accepted in digest configuration files.
var weekdays = map[string]time.Weekday{
	"Mon": time.Monday,
	"Tue": time.Tuesday,
	"Wed": time.Wednesday,
	"Thu": time.Thursday,
	"Fri": time.Friday,
	"Sat": time.Saturday,
	"Sun": time.Sunday,
}

// Spec is a validated weekly schedule: one weekday at one HH:MM clock time.
type Spec struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

func Parse(weekday, clock string) (Spec, error) {
	day, ok := weekdays[strings.TrimSpace(weekday)]
	if !ok {
		return Spec{}, fmt.Errorf("invalid weekday %q, expected one of Mon, Tue, Wed, Thu, Fri, Sat, Sun", weekday)
	}

	hour, minute, err := ParseClock(clock)
	if err != nil {
		return Spec{}, err
	}

	return Spec{Weekday: day, Hour: hour, Minute: minute}, nil
}

// Next returns the first occurrence of the spec strictly after now, in now's
// location. An instant exactly on the spec resolves one week later, so a fire
// instant never repeats.
func (s Spec) Next(now time.Time) time.Time {
	days := (int(s.Weekday) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day()+days, s.Hour, s.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s Spec) String() string {
	return fmt.Sprintf("%s %02d:%02d", s.Weekday.String()[:3], s.Hour, s.Minute)
}

// PeriodKey identifies the scheduling period containing t by ISO year and
// week, e.g. "2026-W34". Delivery records are keyed by it.
func PeriodKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ParseClock parses a wall-clock time in HH:MM form.
func ParseClock(s string) (hour int, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
