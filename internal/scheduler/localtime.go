package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// WallClockLayout is the format scheduled_at arrives in: local wall-clock
// minutes, no zone.
const WallClockLayout = "2006-01-02 15:04"

var (
	// ErrNonexistentLocalTime: the wall clock falls in a gap a DST
	// transition skipped over.
	ErrNonexistentLocalTime = errors.New("local time does not exist in the configured timezone (DST gap)")
	// ErrAmbiguousLocalTime: the wall clock occurs twice around a DST
	// fall-back. The caller must disambiguate; the core does not guess.
	ErrAmbiguousLocalTime = errors.New("local time is ambiguous in the configured timezone (DST overlap)")
)

// ToUTC parses a wall-clock string in loc and converts it to the unique UTC
// instant it names. DST-skipped and DST-repeated wall clocks fail closed.
func ToUTC(wallClock string, loc *time.Location) (time.Time, error) {
	// Naive parse keeps the requested fields untouched; time.Date against
	// loc would silently normalize a wall clock inside a DST gap.
	naive, err := time.Parse(WallClockLayout, wallClock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse scheduled_at %q: %w", wallClock, err)
	}

	instants := wallClockInstants(naive, loc)
	switch len(instants) {
	case 0:
		return time.Time{}, ErrNonexistentLocalTime
	case 1:
		return instants[0].UTC(), nil
	default:
		return time.Time{}, ErrAmbiguousLocalTime
	}
}

// wallClockInstants finds every instant whose wall clock in loc matches the
// requested one (naive carries the fields in UTC). Candidate zone offsets
// are sampled around the requested date, which covers any transition the
// wall clock could straddle.
func wallClockInstants(naive time.Time, loc *time.Location) []time.Time {
	approx := time.Date(naive.Year(), naive.Month(), naive.Day(),
		naive.Hour(), naive.Minute(), 0, 0, loc)

	offsets := map[int]bool{}
	for _, probe := range []time.Duration{-26 * time.Hour, -3 * time.Hour, 0, 3 * time.Hour, 26 * time.Hour} {
		_, off := approx.Add(probe).Zone()
		offsets[off] = true
	}

	var instants []time.Time
	seen := map[int64]bool{}
	for off := range offsets {
		candidate := naive.Add(-time.Duration(off) * time.Second)
		if seen[candidate.Unix()] {
			continue
		}
		seen[candidate.Unix()] = true
		local := candidate.In(loc)
		if local.Year() == naive.Year() && local.Month() == naive.Month() &&
			local.Day() == naive.Day() && local.Hour() == naive.Hour() &&
			local.Minute() == naive.Minute() {
			instants = append(instants, candidate)
		}
	}
	return instants
}
