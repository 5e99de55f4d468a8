package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bindays/internal/address"
	appLog "bindays/internal/log"
	"bindays/internal/model"
	"bindays/internal/schedule"
)

// ErrNoAddress is returned when the directory search yields no candidates.
var ErrNoAddress = errors.New("lookup: no addresses found for that postcode")

// Directory searches the address directory.
type Directory interface {
	SearchLocations(ctx context.Context, query string) ([]address.Candidate, error)
}

// ScheduleSource fetches the raw collection groups for an address.
type ScheduleSource interface {
	FetchWasteInfo(ctx context.Context, uprn string) ([]schedule.RawRecord, error)
}

// Result is a resolved address together with its normalized schedule.
type Result struct {
	Address   address.Candidate
	Entries   []model.CollectionEntry
	Reference time.Time
}

// Service runs search -> select -> fetch -> normalize.
type Service struct {
	dir Directory
	src ScheduleSource
}

func New(dir Directory, src ScheduleSource) *Service {
	return &Service{dir: dir, src: src}
}

// Lookup resolves postcode (and optional house number) to an address and
// returns its schedule relative to ref.
func (s *Service) Lookup(ctx context.Context, postcode, houseNumber string, ref time.Time) (Result, error) {
	candidates, err := s.dir.SearchLocations(ctx, postcode)
	if err != nil {
		return Result{}, fmt.Errorf("search postcode: %w", err)
	}

	chosen := address.SelectAddress(candidates, houseNumber)
	if chosen == nil {
		return Result{}, ErrNoAddress
	}
	appLog.Info("address selected",
		"candidates", len(candidates),
		"display_name", chosen.DisplayName(),
		"house_number", houseNumber,
	)
	if houseNumber != "" && !address.MatchesHint(chosen.DisplayName(), houseNumber) {
		appLog.Warn("house number not found; using first address", "house_number", houseNumber, "matched", false)
	}

	records, err := s.src.FetchWasteInfo(ctx, chosen.UniqueID())
	if err != nil {
		return Result{}, fmt.Errorf("fetch collection info: %w", err)
	}

	entries, err := schedule.Normalize(records, ref)
	if err != nil {
		return Result{}, err
	}
	appLog.Info("schedule normalized", "groups", len(records), "entries", len(entries))

	return Result{
		Address:   chosen,
		Entries:   entries,
		Reference: schedule.DateOf(ref),
	}, nil
}

// Today returns the calendar day of now in loc, as midnight UTC, for use as
// a reference date.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc != nil {
		now = now.In(loc)
	}
	return schedule.DateOf(now)
}
