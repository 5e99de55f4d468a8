package ics

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "bindays/internal/log"
	"bindays/internal/model"
	"bindays/internal/schedule"
)

const (
	DefaultHorizonWeeks = 4
	MaxHorizonWeeks     = 52
)

// byWeekday follows the Monday=0 index used by schedule.ParseWeekday.
var byWeekday = [7]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// WeeklyRule returns the weekly rule for entries whose date was computed
// from a weekday name and falls on that weekday. ok is false for explicit
// dates, route codes and unresolved entries.
func WeeklyRule(e model.CollectionEntry) (*rrule.RRule, bool) {
	if !e.Weekly || !e.HasDate() {
		return nil, false
	}
	idx, ok := schedule.ParseWeekday(e.Day)
	if !ok || schedule.WeekdayIndex(e.Date) != idx {
		return nil, false
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   e.Date,
		Byweekday: []rrule.Weekday{byWeekday[idx]},
	})
	if err != nil {
		appLog.Error("expand: failed to build weekly rule", err, "service", e.Service, "day", e.Day)
		return nil, false
	}
	return r, true
}

// ExpandUpcoming lists the collection days in [from, from+weeks) for the
// given entries. Entries dated from their weekday repeat weekly; explicit
// dates appear once. Entries without a date are skipped.
//
// Results are ordered by date, then by entry order.
func ExpandUpcoming(entries []model.CollectionEntry, from time.Time, weeks int) []model.Occurrence {
	if weeks <= 0 {
		weeks = DefaultHorizonWeeks
	}
	if weeks > MaxHorizonWeeks {
		weeks = MaxHorizonWeeks
	}
	from = schedule.DateOf(from)
	until := from.AddDate(0, 0, 7*weeks)

	out := make([]model.Occurrence, 0)
	for _, e := range entries {
		if !e.HasDate() {
			continue
		}

		if r, ok := WeeklyRule(e); ok {
			for _, t := range r.Between(from, until, true) {
				if !t.Before(until) {
					continue
				}
				out = append(out, occurrence(e, t, true))
			}
			continue
		}

		if !e.Date.Before(from) && e.Date.Before(until) {
			out = append(out, occurrence(e, e.Date, false))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func occurrence(e model.CollectionEntry, t time.Time, recurring bool) model.Occurrence {
	return model.Occurrence{
		Service:   e.Service,
		Day:       e.Day,
		Message:   e.Message,
		Date:      schedule.DateOf(t),
		Recurring: recurring,
	}
}
