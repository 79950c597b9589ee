package slots

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-notifier/types"
)

const testDate = "2024-07-20"

var mera = types.ClubRef{Slug: "mera", Name: "Mera"}

var (
	courtA = types.CourtRef{ID: "a", Surface: types.SurfaceHard, Roofed: true, DisplayNumber: 1, Known: true}
	courtB = types.CourtRef{ID: "b", Surface: types.SurfaceHard, Roofed: false, DisplayNumber: 2, Known: true}
	courtC = types.CourtRef{ID: "c", Surface: types.SurfaceClay, Roofed: false, DisplayNumber: 3, Known: true}
)

func interval(c types.CourtRef, from, to string) types.MergedInterval {
	return types.MergedInterval{Club: mera, Date: testDate, Court: c, Start: types.MustClock(from), End: types.MustClock(to)}
}

func request(from, to string, minutes, qty int) types.BookingRequest {
	return types.BookingRequest{
		Date:     testDate,
		From:     types.MustClock(from),
		To:       types.MustClock(to),
		Duration: types.Clock(minutes),
		Quantity: qty,
	}
}

// flatten turns a result into "window" -> court ids for easy comparison.
func flatten(res types.MatchResult) map[string][]string {
	out := make(map[string][]string)
	for _, club := range res.Clubs {
		for _, w := range club.Windows {
			var ids []string
			for _, c := range w.Courts {
				ids = append(ids, c.ID)
			}
			out[club.Club.Slug+" "+w.Window.String()] = ids
		}
	}
	return out
}

func TestMatchSixtyMinutesInNinetyMinuteInterval(t *testing.T) {
	merged := Merge(clocks("18:00", "18:30", "19:00"))
	require.Equal(t, []types.Window{window("18:00", "19:30")}, merged)

	res, err := Match(request("18:00", "21:00", 60, 1), []types.MergedInterval{interval(courtA, "18:00", "19:30")})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"mera 18:00-19:00": {"a"},
		"mera 18:30-19:30": {"a"},
	}, flatten(res))
}

func TestMatchDurationEqualToInterval(t *testing.T) {
	res, err := Match(request("18:00", "21:00", 90, 1), []types.MergedInterval{interval(courtA, "18:00", "19:30")})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"mera 18:00-19:30": {"a"}}, flatten(res))
}

func TestMatchTwoCourtsSameWindow(t *testing.T) {
	intervals := []types.MergedInterval{
		interval(courtB, "18:00", "19:00"),
		interval(courtA, "18:00", "19:00"),
	}
	res, err := Match(request("18:00", "21:00", 60, 2), intervals)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"mera 18:00-19:00": {"a", "b"}}, flatten(res))

	res, err = Match(request("18:00", "21:00", 60, 3), intervals)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestMatchRoofFilter(t *testing.T) {
	req := request("18:00", "21:00", 30, 1)
	req.Roofed = []bool{false}
	res, err := Match(req, []types.MergedInterval{
		interval(courtA, "18:00", "18:30"),
		interval(courtB, "18:00", "18:30"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"mera 18:00-18:30": {"b"}}, flatten(res))
}

func TestMatchSurfaceFilter(t *testing.T) {
	intervals := []types.MergedInterval{
		interval(courtA, "18:00", "19:00"),
		interval(courtC, "18:00", "19:00"),
	}

	req := request("18:00", "21:00", 60, 1)
	req.Surfaces = []types.Surface{types.SurfaceClay}
	res, err := Match(req, intervals)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"mera 18:00-19:00": {"c"}}, flatten(res))

	req.Surfaces = []types.Surface{types.SurfaceClay, types.SurfaceHard}
	res, err = Match(req, intervals)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"mera 18:00-19:00": {"a", "c"}}, flatten(res))
}

func TestMatchFilteredCourtNeverCredited(t *testing.T) {
	// A clay-only request for 2 courts must not count the hard court.
	req := request("18:00", "21:00", 60, 2)
	req.Surfaces = []types.Surface{types.SurfaceClay}
	res, err := Match(req, []types.MergedInterval{
		interval(courtA, "18:00", "19:00"),
		interval(courtC, "18:00", "19:00"),
	})
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestMatchCandidateNeverRunsPastIntervalEnd(t *testing.T) {
	res, err := Match(request("18:00", "21:00", 90, 1), []types.MergedInterval{
		interval(courtA, "18:00", "19:00"),
		interval(courtA, "19:30", "21:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"mera 19:30-21:00": {"a"}}, flatten(res))
}

func TestMatchBoundedByRequestWindow(t *testing.T) {
	res, err := Match(request("18:30", "20:00", 60, 1), []types.MergedInterval{interval(courtA, "17:00", "22:00")})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"mera 18:30-19:30": {"a"},
		"mera 19:00-20:00": {"a"},
	}, flatten(res))
}

func TestMatchIgnoresOtherDates(t *testing.T) {
	iv := interval(courtA, "18:00", "19:00")
	iv.Date = "2024-07-21"
	res, err := Match(request("18:00", "21:00", 60, 1), []types.MergedInterval{iv})
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestMatchQuantityCountedPerClub(t *testing.T) {
	other := interval(courtB, "18:00", "19:00")
	other.Club = types.ClubRef{Slug: "wtc"}
	res, err := Match(request("18:00", "21:00", 60, 2), []types.MergedInterval{
		interval(courtA, "18:00", "19:00"),
		other,
	})
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestMatchDisplayOrder(t *testing.T) {
	wtc := types.ClubRef{Slug: "wtc"}
	late := interval(courtC, "19:00", "20:00")
	early := interval(courtB, "18:00", "19:00")
	atWtc := interval(courtA, "18:00", "19:00")
	atWtc.Club = wtc

	res, err := Match(request("18:00", "21:00", 60, 1), []types.MergedInterval{late, atWtc, early, interval(courtA, "18:00", "19:00")})
	require.NoError(t, err)
	require.Len(t, res.Clubs, 2)
	assert.Equal(t, "mera", res.Clubs[0].Club.Slug)
	assert.Equal(t, "wtc", res.Clubs[1].Club.Slug)

	windows := res.Clubs[0].Windows
	require.Len(t, windows, 2)
	assert.Equal(t, window("18:00", "19:00"), windows[0].Window)
	assert.Equal(t, []types.CourtRef{courtA, courtB}, windows[0].Courts)
	assert.Equal(t, window("19:00", "20:00"), windows[1].Window)
}

func TestMatchUnknownCourt(t *testing.T) {
	unknown := types.UnknownCourtRef("99")
	res, err := Match(request("18:00", "21:00", 60, 1), []types.MergedInterval{interval(unknown, "18:00", "19:00")})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"mera 18:00-19:00": {"99"}}, flatten(res))
	assert.Equal(t, "unknown court (99)", res.Clubs[0].Windows[0].Courts[0].DisplayName())

	req := request("18:00", "21:00", 60, 1)
	req.Surfaces = []types.Surface{types.SurfaceHard}
	res, err = Match(req, []types.MergedInterval{interval(unknown, "18:00", "19:00")})
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestMatchRejectsInvalidRequests(t *testing.T) {
	cases := map[string]types.BookingRequest{
		"empty window":     request("18:00", "18:00", 60, 1),
		"reversed window":  request("19:00", "18:00", 60, 1),
		"zero duration":    request("18:00", "21:00", 0, 1),
		"odd duration":     request("18:00", "21:00", 45, 1),
		"zero quantity":    request("18:00", "21:00", 60, 0),
		"missing date":     {From: types.MustClock("18:00"), To: types.MustClock("21:00"), Duration: 60, Quantity: 1},
		"negative minutes": request("18:00", "21:00", -30, 1),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Match(req, nil)
			assert.ErrorIs(t, err, types.ErrInvalidBookingRequest)
		})
	}
}

func randomIntervals(r *rand.Rand) []types.MergedInterval {
	courts := []types.CourtRef{courtA, courtB, courtC}
	var out []types.MergedInterval
	for _, c := range courts {
		for _, w := range Merge(randomStarts(r)) {
			out = append(out, types.MergedInterval{Club: mera, Date: testDate, Court: c, Start: w.Start, End: w.End})
		}
	}
	return out
}

func TestMatchWindowContainment(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		intervals := randomIntervals(r)
		req := request("08:00", "20:00", 30*(1+r.Intn(4)), 1)
		res, err := Match(req, intervals)
		require.NoError(t, err)

		for _, club := range res.Clubs {
			for _, w := range club.Windows {
				assert.GreaterOrEqual(t, w.Window.Start, req.From)
				assert.LessOrEqual(t, w.Window.End, req.To)
				assert.Equal(t, req.Duration, w.Window.End-w.Window.Start)
				for _, c := range w.Courts {
					inside := false
					for _, iv := range intervals {
						if iv.Court.ID == c.ID && iv.Start <= w.Window.Start && w.Window.End <= iv.End {
							inside = true
						}
					}
					assert.True(t, inside, "%s on court %s spans a gap", w.Window, c.ID)
				}
			}
		}
	}
}

func TestMatchQuantityMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 50; i++ {
		intervals := randomIntervals(r)
		prev := map[string][]string{}
		for q := 3; q >= 1; q-- {
			res, err := Match(request("06:00", "23:30", 60, q), intervals)
			require.NoError(t, err)
			cur := flatten(res)
			for k := range prev {
				assert.Contains(t, cur, k, "window qualifying for %d must qualify for %d", q+1, q)
			}
			prev = cur
		}
	}
}
