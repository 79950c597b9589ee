package slots

import (
	"sort"

	"court-notifier/types"
)

// Match finds every exact window of req.Duration that at least req.Quantity
// courts of the same club offer inside the request window.
//
// A candidate must fit inside one merged interval of the court as well as
// inside [req.From, req.To]; it never runs past the interval's own end.
func Match(req types.BookingRequest, intervals []types.MergedInterval) (types.MatchResult, error) {
	if err := req.Validate(); err != nil {
		return types.MatchResult{}, err
	}

	clubs := make(map[string]types.ClubRef)
	groups := make(map[string]map[types.Window]map[string]types.CourtRef)

	for _, iv := range intervals {
		if iv.Date != req.Date || !req.Accepts(iv.Court) {
			continue
		}
		if iv.End-iv.Start < req.Duration {
			continue
		}
		for st := iv.Start; st+req.Duration <= iv.End; st += types.Step {
			if st < req.From {
				continue
			}
			if st+req.Duration > req.To {
				break
			}
			w := types.Window{Start: st, End: st + req.Duration}
			byWindow, ok := groups[iv.Club.Slug]
			if !ok {
				byWindow = make(map[types.Window]map[string]types.CourtRef)
				groups[iv.Club.Slug] = byWindow
				clubs[iv.Club.Slug] = iv.Club
			}
			if byWindow[w] == nil {
				byWindow[w] = make(map[string]types.CourtRef)
			}
			byWindow[w][iv.Court.ID] = iv.Court
		}
	}

	slugs := make([]string, 0, len(groups))
	for slug := range groups {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var res types.MatchResult
	for _, slug := range slugs {
		cm := types.ClubMatch{Club: clubs[slug]}
		for w, courts := range groups[slug] {
			if len(courts) < req.Quantity {
				continue
			}
			list := make([]types.CourtRef, 0, len(courts))
			for _, c := range courts {
				list = append(list, c)
			}
			types.SortCourts(list)
			cm.Windows = append(cm.Windows, types.CourtMatch{Window: w, Courts: list})
		}
		if len(cm.Windows) == 0 {
			continue
		}
		sort.Slice(cm.Windows, func(i, j int) bool {
			a, b := cm.Windows[i].Window, cm.Windows[j].Window
			if a.Start != b.Start {
				return a.Start < b.Start
			}
			return a.End < b.End
		})
		res.Clubs = append(res.Clubs, cm)
	}
	return res, nil
}
