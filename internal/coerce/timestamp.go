package coerce

import (
	"fmt"
	"time"

	"capconv/internal/errors"
)

var (
	ErrNoLayout       = errors.New("no time layout matched")
	ErrNonexistent    = errors.New("wall clock does not exist in zone")
	ErrAmbiguousClock = errors.New("wall clock is ambiguous in zone")
)

// ParseWall parses s with the first matching layout and returns its wall
// clock as a UTC time.  Any zone in s is dropped: tshark prints the
// capture host's abbreviation (MDT, CEST), which Go cannot map to an
// offset reliably, and the artifact keeps naive timestamps.
func ParseWall(s string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(),
			t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrNoLayout, s)
}

// CheckLocal reports whether the naive wall clock w names exactly one
// instant in loc.  Clocks inside a spring-forward gap return
// ErrNonexistent; clocks inside a fall-back overlap return
// ErrAmbiguousClock.  Neither is resolved to an offset.
func CheckLocal(w time.Time, loc *time.Location) error {
	// Offsets that could apply near w: the zone's offset a day either
	// side always covers both sides of a single transition.
	naive := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), time.UTC)
	offsets := make(map[int]struct{}, 2)
	for _, d := range []time.Duration{-24 * time.Hour, 0, 24 * time.Hour} {
		_, off := naive.Add(d).In(loc).Zone()
		offsets[off] = struct{}{}
	}

	matches := 0
	for off := range offsets {
		instant := naive.Add(-time.Duration(off) * time.Second)
		local := instant.In(loc)
		if _, o := local.Zone(); o != off {
			continue
		}
		if sameWall(local, w) {
			matches++
		}
	}
	switch matches {
	case 0:
		return ErrNonexistent
	case 1:
		return nil
	default:
		return ErrAmbiguousClock
	}
}

func sameWall(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() &&
		a.Second() == b.Second() && a.Nanosecond() == b.Nanosecond()
}
