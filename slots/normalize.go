// Package slots turns raw per-timeslot availability into merged intervals and
// matches them against booking requests. Everything here is pure and safe to
// call concurrently on independent inputs.
package slots

import (
	"fmt"
	"sort"

	"court-notifier/types"
)

// CourtKey identifies one court on one date.
type CourtKey struct {
	Club  string
	Date  string
	Court string
}

// CourtSlots is the sorted, distinct list of free starts of one court on one date.
type CourtSlots struct {
	Club   types.ClubRef
	Date   string
	Court  types.CourtRef
	Starts []types.Clock
}

// Normalizer groups availability records per court.
type Normalizer struct {
	monitored map[types.Clock]bool
}

// NewNormalizer returns a Normalizer that only keeps the given timeslots.
// An empty list keeps every on-grid timeslot.
func NewNormalizer(monitored []types.Clock) *Normalizer {
	n := &Normalizer{}
	if len(monitored) > 0 {
		n.monitored = make(map[types.Clock]bool, len(monitored))
		for _, c := range monitored {
			n.monitored[c] = true
		}
	}
	return n
}

// Normalize groups records by (club, date, court), dropping duplicates.
// Records that cannot be used are dropped and reported in the returned errors.
func (n *Normalizer) Normalize(records []types.AvailabilityRecord) (map[CourtKey]CourtSlots, []error) {
	out := make(map[CourtKey]CourtSlots)
	seen := make(map[CourtKey]map[types.Clock]bool)
	var dropped []error

	for _, r := range records {
		if !r.Timeslot.OnGrid() {
			dropped = append(dropped, fmt.Errorf("%w: %s %s %s at %s", types.ErrInvalidTimeslot, r.Club.Slug, r.Date, r.Court.ID, r.Timeslot))
			continue
		}
		if n.monitored != nil && !n.monitored[r.Timeslot] {
			continue
		}

		key := CourtKey{Club: r.Club.Slug, Date: r.Date, Court: r.Court.ID}
		cs, ok := out[key]
		if !ok {
			cs = CourtSlots{Club: r.Club, Date: r.Date, Court: r.Court}
			seen[key] = make(map[types.Clock]bool)
		}
		if seen[key][r.Timeslot] {
			continue
		}
		seen[key][r.Timeslot] = true
		cs.Starts = append(cs.Starts, r.Timeslot)
		out[key] = cs
	}

	for key, cs := range out {
		sort.Slice(cs.Starts, func(i, j int) bool { return cs.Starts[i] < cs.Starts[j] })
		out[key] = cs
	}
	return out, dropped
}
