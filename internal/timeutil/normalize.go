// Package timeutil turns the timestamps returned by remote APIs into a single
// canonical, zone-correct representation.
//
// Remote APIs hand back UTC with a "Z", explicit offsets, or bare wall-clock
// strings with no zone at all. Bare strings are always read as wall-clock time in the target zone,
// never as UTC, and are localized with the zone's rules for that date so the
// resulting offset is the one actually in force (CET or CEST for Amsterdam).
package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// CanonicalLayout is the ISO-8601 layout used for every dataset key. It always
// prints a numeric offset, including "+00:00" for UTC.
const CanonicalLayout = "2006-01-02T15:04:05.999999999-07:00"

// DefaultZone is the business timezone datasets are normalized to.
const DefaultZone = "Europe/Amsterdam"

// ErrUnparseable is returned for timestamps matching no known layout.
var ErrUnparseable = errors.New("unrecognised timestamp format")

// zonedLayouts carry an explicit offset or "Z".
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
}

// naiveLayouts have no zone and are read as wall clock in the target zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalizer converts timestamps into canonical form for one target zone.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer loads the IANA zone by name.
func NewNormalizer(zone string) (*Normalizer, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return &Normalizer{loc: loc}, nil
}

// NewNormalizerForLocation wraps an already loaded location.
func NewNormalizerForLocation(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Location returns the target zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// ToCanonical converts an instant into the target zone. The instant is
// preserved; only its presentation changes.
func (n *Normalizer) ToCanonical(t time.Time) time.Time {
	return t.In(n.loc)
}

// Localize reads the calendar fields of t as wall-clock time in the target
// zone, discarding whatever zone t carried. Use it for values that were built
// from zone-less data (for example time.Date(..., time.UTC) over a local date).
// The offset is resolved from the zone rules for that date, not copied.
func (n *Normalizer) Localize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), n.loc)
}

// Parse reads a timestamp string. Strings with an offset keep their instant;
// strings without one are localized as wall clock in the target zone. The
// result is always expressed in the target zone.
func (n *Normalizer) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, ok := parseZoned(s); ok {
		return n.ToCanonical(t), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
}

// Normalize parses s and formats it canonically.
func (n *Normalizer) Normalize(s string) (string, error) {
	t, err := n.Parse(s)
	if err != nil {
		return "", err
	}
	return Format(t), nil
}

// Format renders t with CanonicalLayout.
func Format(t time.Time) string {
	return t.Format(CanonicalLayout)
}

// ValidateOffset reports whether s carries an explicit UTC offset that is
// legal for the target zone: UTC itself, or one of the offsets the zone uses
// in the year of the instant (standard or daylight). Offsets such as +00:09
// parse fine as ISO-8601 but are never legal for Europe/Amsterdam, so they
// are rejected. Strings without an offset are rejected too.
func (n *Normalizer) ValidateOffset(s string) bool {
	t, ok := parseZoned(strings.TrimSpace(s))
	if !ok {
		return false
	}
	_, offset := t.Zone()
	if offset == 0 {
		return true
	}
	for _, legal := range n.legalOffsets(t) {
		if offset == legal {
			return true
		}
	}
	return false
}

// ExpectedOffset returns the offset, in seconds, the target zone uses at the
// instant t.
func (n *Normalizer) ExpectedOffset(t time.Time) int {
	_, offset := t.In(n.loc).Zone()
	return offset
}

// legalOffsets samples the zone at the instant itself and at both solstice
// halves of its year, which covers standard and daylight time.
func (n *Normalizer) legalOffsets(t time.Time) []int {
	year := t.In(n.loc).Year()
	samples := []time.Time{
		t,
		time.Date(year, time.January, 15, 12, 0, 0, 0, time.UTC),
		time.Date(year, time.July, 15, 12, 0, 0, 0, time.UTC),
	}
	offsets := make([]int, 0, len(samples))
	for _, sample := range samples {
		offsets = append(offsets, n.ExpectedOffset(sample))
	}
	return offsets
}

func parseZoned(s string) (time.Time, bool) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
