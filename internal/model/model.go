package model

import "time"

// CollectionEntry is one canonical schedule line for a single service.
//
// Empty strings mean "not determinable". Date is the zero time when no
// concrete occurrence could be resolved; otherwise it is midnight UTC of the
// calendar day.
type CollectionEntry struct {
	Service string
	Day     string
	Message string
	Date    time.Time

	// Weekly is set when Date was computed from Day as its next occurrence.
	// Dates read from the text are one-off and leave it false.
	Weekly bool
}

// HasDate reports whether a concrete occurrence was resolved.
func (e CollectionEntry) HasDate() bool {
	return !e.Date.IsZero()
}

// DateString returns the date as YYYY-MM-DD, or "" when unresolved.
func (e CollectionEntry) DateString() string {
	if e.Date.IsZero() {
		return ""
	}
	return e.Date.Format(time.DateOnly)
}

// Occurrence is a single concrete collection day produced by expanding
// entries over a horizon.
type Occurrence struct {
	Service string
	Day     string
	Message string

	// Date is midnight UTC of the collection day.
	Date time.Time

	// Recurring is true when the occurrence came from a weekly rule rather
	// than a one-off explicit date.
	Recurring bool
}
