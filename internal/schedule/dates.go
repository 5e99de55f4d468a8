package schedule

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidWeekday is returned by NextOccurrence for names outside the
	// canonical Monday..Sunday list.
	ErrInvalidWeekday = errors.New("schedule: invalid weekday name")
)

// weekdays uses the Monday=0 .. Sunday=6 index convention.
var weekdays = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var months = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// explicitDateRe matches "[Weekday][,] D Month YYYY". The leading weekday
// only anchors the match. Separators include Unicode spaces such as the
// no-break space pages put between date parts.
var explicitDateRe = regexp.MustCompile(
	`(?i)(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)?[\s\p{Z}]*,?[\s\p{Z}]*` +
		`(\d{1,2})[\s\p{Z}]+` +
		`(january|february|march|april|may|june|july|august|september|october|november|december)` +
		`[\s\p{Z}]+(\d{4})`,
)

// ExtractWeekday returns the first weekday name (Monday first) contained in
// text, capitalized, or "" if none is present. Matching is a plain
// case-insensitive substring test.
func ExtractWeekday(text string) string {
	lowered := strings.ToLower(text)
	for _, day := range weekdays {
		if strings.Contains(lowered, day) {
			return capitalize(day)
		}
	}
	return ""
}

// ExtractExplicitDate finds the first "D Month YYYY" date in text. ok is
// false when there is no match or the numbers do not form a real calendar
// date (e.g. 31 April).
func ExtractExplicitDate(text string) (date time.Time, ok bool) {
	if text == "" {
		return time.Time{}, false
	}
	m := explicitDateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	month := months[strings.ToLower(m[2])]
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return time.Time{}, false
	}
	return civilDate(year, month, day)
}

// ParseWeekday matches name case-insensitively against the canonical
// weekday list and returns its Monday=0 index.
func ParseWeekday(name string) (int, bool) {
	lowered := strings.ToLower(name)
	for i, day := range weekdays {
		if lowered == day {
			return i, true
		}
	}
	return 0, false
}

// IsWeekday reports whether name is a canonical weekday name in any case.
func IsWeekday(name string) bool {
	_, ok := ParseWeekday(name)
	return ok
}

// NextOccurrence returns the first date on or after ref that falls on the
// named weekday. When ref already is that weekday, ref itself is returned:
// today counts as the next collection.
func NextOccurrence(weekdayName string, ref time.Time) (time.Time, error) {
	target, ok := ParseWeekday(weekdayName)
	if !ok {
		return time.Time{}, ErrInvalidWeekday
	}
	ref = DateOf(ref)
	delta := (target - WeekdayIndex(ref) + 7) % 7
	return ref.AddDate(0, 0, delta), nil
}

// WeekdayIndex converts t's weekday to the Monday=0 convention.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DateOf truncates t to midnight UTC of its own calendar day.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// civilDate builds a date, rejecting combinations that time.Date would
// silently normalize into another month. 1 January 0001 is rejected too: it
// is the zero time, which entries use for "no date".
func civilDate(year int, month time.Month, day int) (time.Time, bool) {
	if year < 1 || month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
