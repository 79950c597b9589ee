package slots

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-notifier/types"
)

func clocks(ss ...string) []types.Clock {
	out := make([]types.Clock, len(ss))
	for i, s := range ss {
		out[i] = types.MustClock(s)
	}
	return out
}

func window(from, to string) types.Window {
	return types.Window{Start: types.MustClock(from), End: types.MustClock(to)}
}

// randomStarts picks a sorted distinct subset of the 06:00-23:30 grid.
func randomStarts(r *rand.Rand) []types.Clock {
	var out []types.Clock
	for t := types.MustClock("06:00"); t < types.MustClock("23:30"); t += types.Step {
		if r.Intn(3) > 0 {
			out = append(out, t)
		}
	}
	return out
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge(nil))
}

func TestMergeContiguous(t *testing.T) {
	got := Merge(clocks("18:00", "18:30", "19:00"))
	assert.Equal(t, []types.Window{window("18:00", "19:30")}, got)
}

func TestMergeGap(t *testing.T) {
	got := Merge(clocks("08:00", "08:30", "10:00", "11:30", "12:00"))
	assert.Equal(t, []types.Window{
		window("08:00", "09:00"),
		window("10:00", "10:30"),
		window("11:30", "12:30"),
	}, got)
}

func TestMergeIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		merged := Merge(randomStarts(r))
		for _, w := range merged {
			assert.Equal(t, []types.Window{w}, Merge(Expand(w)))
		}

		var all []types.Clock
		for _, w := range merged {
			all = append(all, Expand(w)...)
		}
		assert.Equal(t, merged, Merge(all))
	}
}

func TestMergeCoverage(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		starts := randomStarts(r)
		merged := Merge(starts)
		for _, s := range starts {
			covering := 0
			for _, w := range merged {
				if w.Start <= s && s < w.End {
					covering++
				}
			}
			assert.Equal(t, 1, covering, "start %s", s)
		}
	}
}

func TestMergeNoAdjacentIntervals(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	for i := 0; i < 50; i++ {
		merged := Merge(randomStarts(r))
		for j := 1; j < len(merged); j++ {
			assert.Greater(t, merged[j].Start, merged[j-1].End)
		}
		for _, w := range merged {
			assert.Greater(t, w.End, w.Start)
			assert.Zero(t, (w.End-w.Start)%types.Step)
		}
	}
}

func TestMergeAllOrdersByCourt(t *testing.T) {
	club := types.ClubRef{Slug: "mera"}
	c1 := types.CourtRef{ID: "101", DisplayNumber: 1, Known: true}
	c2 := types.CourtRef{ID: "102", DisplayNumber: 2, Known: true}
	courts := map[CourtKey]CourtSlots{
		{Club: "mera", Date: "2024-07-20", Court: "102"}: {Club: club, Date: "2024-07-20", Court: c2, Starts: clocks("18:00")},
		{Club: "mera", Date: "2024-07-20", Court: "101"}: {Club: club, Date: "2024-07-20", Court: c1, Starts: clocks("18:00", "19:00")},
	}

	got := MergeAll(courts)
	require.Len(t, got, 3)
	assert.Equal(t, "101", got[0].Court.ID)
	assert.Equal(t, types.MustClock("18:00"), got[0].Start)
	assert.Equal(t, "101", got[1].Court.ID)
	assert.Equal(t, types.MustClock("19:00"), got[1].Start)
	assert.Equal(t, "102", got[2].Court.ID)
}

func TestNormalizeDedupesAndSorts(t *testing.T) {
	club := types.ClubRef{Slug: "wtc"}
	court := types.CourtRef{ID: "7", DisplayNumber: 7, Known: true}
	rec := func(ts string) types.AvailabilityRecord {
		return types.AvailabilityRecord{Club: club, Date: "2024-07-21", Timeslot: types.MustClock(ts), Court: court}
	}

	got, dropped := NewNormalizer(nil).Normalize([]types.AvailabilityRecord{
		rec("19:00"), rec("18:00"), rec("19:00"), rec("18:30"), rec("18:00"),
	})
	require.Empty(t, dropped)
	require.Len(t, got, 1)

	cs := got[CourtKey{Club: "wtc", Date: "2024-07-21", Court: "7"}]
	assert.Equal(t, clocks("18:00", "18:30", "19:00"), cs.Starts)
	assert.True(t, sort.SliceIsSorted(cs.Starts, func(i, j int) bool { return cs.Starts[i] < cs.Starts[j] }))
}

func TestNormalizeDropsOffGridTimeslot(t *testing.T) {
	club := types.ClubRef{Slug: "wtc"}
	court := types.CourtRef{ID: "7"}
	got, dropped := NewNormalizer(nil).Normalize([]types.AvailabilityRecord{
		{Club: club, Date: "2024-07-21", Timeslot: types.MustClock("18:15"), Court: court},
		{Club: club, Date: "2024-07-21", Timeslot: types.MustClock("18:30"), Court: court},
	})

	require.Len(t, dropped, 1)
	assert.ErrorIs(t, dropped[0], types.ErrInvalidTimeslot)
	assert.Equal(t, clocks("18:30"), got[CourtKey{Club: "wtc", Date: "2024-07-21", Court: "7"}].Starts)
}

func TestNormalizeKeepsOnlyMonitored(t *testing.T) {
	club := types.ClubRef{Slug: "mera"}
	court := types.CourtRef{ID: "1"}
	n := NewNormalizer(clocks("18:00", "18:30"))
	got, dropped := n.Normalize([]types.AvailabilityRecord{
		{Club: club, Date: "2024-07-20", Timeslot: types.MustClock("17:30"), Court: court},
		{Club: club, Date: "2024-07-20", Timeslot: types.MustClock("18:00"), Court: court},
	})

	assert.Empty(t, dropped)
	assert.Equal(t, clocks("18:00"), got[CourtKey{Club: "mera", Date: "2024-07-20", Court: "1"}].Starts)
}

func TestNormalizeSeparatesDatesAndClubs(t *testing.T) {
	court := types.CourtRef{ID: "1"}
	got, _ := NewNormalizer(nil).Normalize([]types.AvailabilityRecord{
		{Club: types.ClubRef{Slug: "mera"}, Date: "2024-07-20", Timeslot: types.MustClock("18:00"), Court: court},
		{Club: types.ClubRef{Slug: "mera"}, Date: "2024-07-21", Timeslot: types.MustClock("18:00"), Court: court},
		{Club: types.ClubRef{Slug: "wtc"}, Date: "2024-07-20", Timeslot: types.MustClock("18:00"), Court: court},
	})
	assert.Len(t, got, 3)
}
