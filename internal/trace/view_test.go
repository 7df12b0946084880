package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/OCAP2/simtools/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView_Groups(t *testing.T) {
	s := loaded(t, twoFrames)

	v := s.View(60)
	assert.Equal(t, int64(60), v.Time())
	assert.Equal(t, 2, v.Len())

	scouts := v.Group(core.TeamA, core.RoleScout)
	require.Len(t, scouts, 1)
	assert.Equal(t, "A_S00", scouts[0].AgentID)

	assert.Empty(t, v.Group(core.TeamB, core.RoleScout))
	assert.Equal(t, []GroupKey{
		{Team: core.TeamA, Role: core.RoleScout},
		{Team: core.TeamB, Role: core.RoleCommander},
	}, v.Keys())
}

func TestView_PointsAreLonLat(t *testing.T) {
	s := loaded(t, twoFrames)

	pts := s.View(60).Points(core.TeamB, core.RoleCommander)
	require.Len(t, pts, 1)
	assert.Equal(t, [2]float64{121.5, 31.2}, pts[0])
}

func TestView_Projected(t *testing.T) {
	s := loaded(t, twoFrames)

	pts := s.View(0).Projected(core.TeamA, core.RoleScout)
	require.Len(t, pts, 1)
	assert.Greater(t, pts[0][0], 1e7)
	assert.Greater(t, pts[0][1], 1e6)
}

func TestView_Memoised(t *testing.T) {
	s := loaded(t, twoFrames)

	v1 := s.View(60)
	v2 := s.View(60)
	assert.Same(t, v1, v2)

	_ = s.View(0)
	assert.NotSame(t, v1, s.View(60))
}

func TestView_GroupReturnsCopy(t *testing.T) {
	s := loaded(t, twoFrames)

	scouts := s.View(0).Group(core.TeamA, core.RoleScout)
	scouts[0].AgentID = "X"
	scouts[0].LonDeg = -1

	v := s.View(0)
	assert.Equal(t, "A_S00", v.Group(core.TeamA, core.RoleScout)[0].AgentID)
	assert.NotEqual(t, -1.0, v.Points(core.TeamA, core.RoleScout)[0][0])
	assert.Equal(t, "A_S00", s.PositionsAt(0)[0].AgentID)
}

func TestView_DroppedOnReload(t *testing.T) {
	s := loaded(t, twoFrames)
	v1 := s.View(60)

	_, err := s.Load(strings.NewReader(`{"time_sec":60,"positions":[]}`))
	require.NoError(t, err)

	v2 := s.View(60)
	assert.NotSame(t, v1, v2)
	assert.Equal(t, 0, v2.Len())
}

func TestView_Miss(t *testing.T) {
	s := loaded(t, twoFrames)
	v := s.View(30)
	assert.Equal(t, 0, v.Len())
	assert.Empty(t, v.Keys())
}

func TestView_UnknownGroupsFollowKnownOnes(t *testing.T) {
	s := loaded(t, `{"time_sec":0,"positions":[{"agent_id":"x","team_id":"C","role":"tank","lat_deg":0,"lon_deg":0},{"agent_id":"y","team_id":"B","role":"attacker","lat_deg":0,"lon_deg":0}]}`)

	keys := s.View(0).Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, GroupKey{Team: core.TeamB, Role: core.RoleAttacker}, keys[0])
	assert.Equal(t, GroupKey{Team: "C", Role: "tank"}, keys[1])
}

func TestEncoder_RoundTripsThroughStore(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(core.Frame{TimeSec: 0}))
	require.NoError(t, enc.Encode(core.Frame{TimeSec: 60, Positions: []core.PositionRecord{
		{AgentID: "A_CMD", TeamID: core.TeamA, Role: core.RoleCommander, LatDeg: 1, LonDeg: 2},
	}}))

	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), `"positions":[]`)

	s := NewStore(nil)
	sum, err := s.Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Frames)
	assert.Equal(t, "A_CMD", s.PositionsAt(60)[0].AgentID)
}
