package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"bindays/internal/model"
)

const (
	ProductID = "-//bindays//Waste Collections//EN"
	uidDomain = "bindays"
)

// BuildCalendar renders entries as an all-day subscription calendar.
// Weekday entries carry a weekly RRULE starting at their resolved date;
// entries without a date are left out.
func BuildCalendar(name string, entries []model.CollectionEntry, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName(name)
	cal.SetXPublishedTTL("PT6H")

	stamp := now.UTC()
	for _, e := range entries {
		if !e.HasDate() {
			continue
		}

		ev := cal.AddEvent(eventUID(e))
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(e.Date)
		ev.SetAllDayEndAt(e.Date.AddDate(0, 0, 1))
		ev.SetSummary(e.Service)
		if desc := describe(e); desc != "" {
			ev.SetDescription(desc)
		}
		if r, ok := WeeklyRule(e); ok {
			ev.AddRrule(r.OrigOptions.RRuleString())
		}
	}
	return cal
}

// eventUID stays stable across refreshes as long as the resolved date and
// service do not change.
func eventUID(e model.CollectionEntry) string {
	return e.DateString() + "-" + slug(e.Service) + "@" + uidDomain
}

func describe(e model.CollectionEntry) string {
	if e.Message != "" {
		return e.Message
	}
	return e.Day
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
