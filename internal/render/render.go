package render

import (
	"strings"
	"time"

	"bindays/internal/address"
	"bindays/internal/model"
)

// FormatTranscript renders the chosen address and its schedule as plain
// text, one line per entry.
func FormatTranscript(c address.Candidate, entries []model.CollectionEntry) string {
	lines := []string{
		"Address: " + firstNonEmpty(c.DisplayName(), c.Name(), "Unknown"),
		"UPRN: " + firstNonEmpty(c.UniqueID(), "N/A"),
	}
	if len(entries) == 0 {
		lines = append(lines, "No collection details found.")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, "Collections:")
	for _, e := range entries {
		lines = append(lines, "  - "+e.Service+": "+EntryLine(e))
	}
	return strings.Join(lines, "\n")
}

// EntryLine joins whichever of day, date and message are known.
func EntryLine(e model.CollectionEntry) string {
	parts := make([]string, 0, 3)
	if e.Day != "" {
		parts = append(parts, e.Day)
	}
	if e.HasDate() {
		parts = append(parts, e.DateString())
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(parts) == 0 {
		return "No details"
	}
	return strings.Join(parts, " | ")
}

// FormatUpcoming renders expanded occurrences, one per line.
func FormatUpcoming(occ []model.Occurrence) string {
	if len(occ) == 0 {
		return "No upcoming collections."
	}
	lines := make([]string, 0, len(occ)+1)
	lines = append(lines, "Upcoming:")
	for _, o := range occ {
		lines = append(lines, "  "+o.Date.Format(time.DateOnly)+" "+o.Date.Weekday().String()[:3]+"  "+o.Service)
	}
	return strings.Join(lines, "\n")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
