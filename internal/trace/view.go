package trace

import (
	"slices"

	"github.com/OCAP2/simtools/internal/geo"
	"github.com/OCAP2/simtools/pkg/core"
)

// GroupKey identifies one (team, role) series within a frame
type GroupKey struct {
	Team core.TeamID
	Role core.Role
}

// FrameView groups the records of a single frame by team and role
type FrameView struct {
	time   int64
	total  int
	groups map[GroupKey][]core.PositionRecord
}

func newFrameView(t int64, recs []core.PositionRecord) *FrameView {
	v := &FrameView{
		time:   t,
		total:  len(recs),
		groups: make(map[GroupKey][]core.PositionRecord),
	}
	for _, r := range recs {
		k := GroupKey{Team: r.TeamID, Role: r.Role}
		v.groups[k] = append(v.groups[k], r)
	}
	return v
}

// Time returns the frame timestamp
func (v *FrameView) Time() int64 { return v.time }

// Len returns the number of records in the frame
func (v *FrameView) Len() int { return v.total }

// Group returns a copy of the records of one team and role, in file order.
func (v *FrameView) Group(team core.TeamID, role core.Role) []core.PositionRecord {
	return slices.Clone(v.groups[GroupKey{Team: team, Role: role}])
}

// Points returns (lon, lat) pairs for one group.
func (v *FrameView) Points(team core.TeamID, role core.Role) [][2]float64 {
	recs := v.groups[GroupKey{Team: team, Role: role}]
	out := make([][2]float64, len(recs))
	for i, r := range recs {
		out[i] = [2]float64{r.LonDeg, r.LatDeg}
	}
	return out
}

// Projected returns Web Mercator (x, y) pairs for one group
func (v *FrameView) Projected(team core.TeamID, role core.Role) [][2]float64 {
	recs := v.groups[GroupKey{Team: team, Role: role}]
	out := make([][2]float64, len(recs))
	for i, r := range recs {
		x, y := geo.WebMercator(r.LatDeg, r.LonDeg)
		out[i] = [2]float64{x, y}
	}
	return out
}

// Keys returns the non-empty groups. Known teams and roles come first in
// canonical order; anything else follows.
func (v *FrameView) Keys() []GroupKey {
	keys := make([]GroupKey, 0, len(v.groups))
	seen := make(map[GroupKey]bool, len(v.groups))
	for _, team := range core.Teams {
		for _, role := range core.Roles {
			k := GroupKey{Team: team, Role: role}
			if _, ok := v.groups[k]; ok {
				keys = append(keys, k)
				seen[k] = true
			}
		}
	}
	for k := range v.groups {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
