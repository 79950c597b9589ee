package slots

import (
	"sort"

	"court-notifier/types"
)

// Merge collapses sorted distinct starts into maximal [start, end) runs.
// Starts exactly one step apart always end up in the same run.
func Merge(starts []types.Clock) []types.Window {
	if len(starts) == 0 {
		return nil
	}

	var out []types.Window
	cur := types.Window{Start: starts[0], End: starts[0] + types.Step}
	for _, t := range starts[1:] {
		if t <= cur.End {
			if t+types.Step > cur.End {
				cur.End = t + types.Step
			}
			continue
		}
		out = append(out, cur)
		cur = types.Window{Start: t, End: t + types.Step}
	}
	return append(out, cur)
}

// MergeAll merges every court and returns intervals ordered by date, club,
// court display order and start.
func MergeAll(courts map[CourtKey]CourtSlots) []types.MergedInterval {
	keys := make([]CourtKey, 0, len(courts))
	for k := range courts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Club != b.Club {
			return a.Club < b.Club
		}
		return courts[a].Court.Less(courts[b].Court)
	})

	var out []types.MergedInterval
	for _, k := range keys {
		cs := courts[k]
		for _, w := range Merge(cs.Starts) {
			out = append(out, types.MergedInterval{
				Club:  cs.Club,
				Date:  cs.Date,
				Court: cs.Court,
				Start: w.Start,
				End:   w.End,
			})
		}
	}
	return out
}

// Expand lists the grid starts covered by w.
func Expand(w types.Window) []types.Clock {
	var out []types.Clock
	for t := w.Start; t < w.End; t += types.Step {
		out = append(out, t)
	}
	return out
}
