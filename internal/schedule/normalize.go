package schedule

import (
	"errors"
	"strings"
	"time"

	"bindays/internal/model"
)

// ErrNoReferenceDate is returned by Normalize when the caller did not supply
// a reference date.
var ErrNoReferenceDate = errors.New("schedule: reference date is required")

// Normalize converts raw collection groups into canonical entries, in input
// order. ref is the day "next occurrence" is measured from; it must be set.
//
// A service yields an entry only if a day or a message could be determined.
// Shape problems in the records never produce an error.
func Normalize(records []RawRecord, ref time.Time) ([]model.CollectionEntry, error) {
	if ref.IsZero() {
		return nil, ErrNoReferenceDate
	}
	ref = DateOf(ref)

	entries := make([]model.CollectionEntry, 0)
	for _, rec := range records {
		for _, svc := range rec.Services {
			entry, ok := normalizeService(svc, ref)
			if !ok {
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// normalizeService applies the fallback cascade to one service. Earlier
// sources win; later ones only fill what is still empty.
func normalizeService(svc Service, ref time.Time) (model.CollectionEntry, bool) {
	var (
		day, message string
		date         time.Time
		haveDate     bool
	)

	switch d := svc.Details.(type) {
	case StructuredDetails:
		message = d.CatchAll
		if message != "" {
			day = ExtractWeekday(message)
			date, haveDate = ExtractExplicitDate(message)
		}
		for _, v := range d.DayFields {
			if day == "" {
				day = v
			}
			if !haveDate {
				date, haveDate = ExtractExplicitDate(v)
			}
		}
		if message == "" && d.Info != "" {
			message = d.Info
			if !haveDate {
				date, haveDate = ExtractExplicitDate(message)
			}
		}
	case TextDetails:
		message = string(d)
		day = ExtractWeekday(message)
		date, haveDate = ExtractExplicitDate(message)
	default:
		return model.CollectionEntry{}, false
	}

	if day == "" && message == "" {
		return model.CollectionEntry{}, false
	}

	// Route codes and other free-form day values get no computed date.
	weekly := false
	if !haveDate && IsWeekday(day) {
		next, err := NextOccurrence(day, ref)
		if err == nil {
			date, haveDate, weekly = next, true, true
		}
	}

	entry := model.CollectionEntry{
		Service: ServiceName(svc.Key),
		Day:     day,
		Message: message,
		Weekly:  weekly,
	}
	if haveDate {
		entry.Date = date
	}
	return entry, true
}

// ServiceName turns an upstream key such as "Refuse_Collection" into a
// display name.
func ServiceName(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
