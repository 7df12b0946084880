package scenario

import (
	"testing"

	"github.com/OCAP2/simtools/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditor_EmptyBeforeGenerate(t *testing.T) {
	e := NewEditor(nil)

	assert.Nil(t, e.Roster())
	assert.ErrorIs(t, e.MoveWaypoint(0, 0, 0, 1, 1), ErrNoRoster)

	_, err := e.Document(nil)
	assert.ErrorIs(t, err, ErrNoRoster)
}

func TestEditor_FailedGenerateKeepsRoster(t *testing.T) {
	e := NewEditor(nil)
	require.NoError(t, e.Generate(seeded(testConfig(), 1)))
	before := e.Roster()

	bad := testConfig()
	bad.MinSpeedKph = 100
	require.ErrorIs(t, e.Generate(bad), ErrInvalidSpeedRange)

	assert.Equal(t, before, e.Roster())
}

func TestEditor_GenerateReplacesRoster(t *testing.T) {
	e := NewEditor(nil)
	require.NoError(t, e.Generate(seeded(testConfig(), 1)))

	cfg := testConfig()
	cfg.A.Attackers = 0
	require.NoError(t, e.Generate(cfg))

	assert.Len(t, e.Roster()[0].Agents, 1+2+3)
}

func TestEditor_MoveWaypoint(t *testing.T) {
	e := NewEditor(nil)
	require.NoError(t, e.Generate(seeded(testConfig(), 5)))
	before := e.Roster()

	require.NoError(t, e.MoveWaypoint(0, 1, 1, 10.5, 20.5))
	after := e.Roster()

	wp := after[0].Agents[1].Route[1]
	assert.Equal(t, 10.5, wp.LatDeg)
	assert.Equal(t, 20.5, wp.LonDeg)
	assert.Equal(t, before[0].Agents[1].Route[1].SpeedKph, wp.SpeedKph)

	// nothing else moved
	after[0].Agents[1].Route[1] = before[0].Agents[1].Route[1]
	assert.Equal(t, before, after)
}

func TestEditor_MoveWaypointAllowsEndpoints(t *testing.T) {
	e := NewEditor(nil)
	require.NoError(t, e.Generate(testConfig()))

	last := len(e.Roster()[1].Agents[2].Route) - 1
	require.NoError(t, e.MoveWaypoint(1, 2, last, -1, -1))
	require.NoError(t, e.MoveWaypoint(0, 0, 0, 0, 0))

	r := e.Roster()
	assert.Equal(t, -1.0, r[1].Agents[2].Route[last].LatDeg)
	assert.Equal(t, 0.0, r[0].Agents[0].Route[0].LatDeg)
}

func TestEditor_MoveWaypointOutOfRange(t *testing.T) {
	e := NewEditor(nil)
	require.NoError(t, e.Generate(testConfig()))

	tests := []struct {
		name                  string
		team, agent, waypoint int
	}{
		{"negative team", -1, 0, 0},
		{"team past end", 2, 0, 0},
		{"agent past end", 0, 10, 0},
		{"negative agent", 0, -1, 0},
		{"commander has one waypoint", 0, 0, 1},
		{"negative waypoint", 1, 1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.MoveWaypoint(tt.team, tt.agent, tt.waypoint, 1, 1)
			assert.ErrorIs(t, err, ErrIndexOutOfRange)
		})
	}
}

func TestEditor_MoveWaypointKeepsNetworks(t *testing.T) {
	e := NewEditor(nil)
	require.NoError(t, e.Generate(testConfig()))

	require.NoError(t, e.MoveWaypoint(0, 3, 0, 1, 1))
	assert.Equal(t, []string{"A_M00", "A_M01", "A_M02"}, e.Roster()[0].Agents[1].Network)
}

func TestEditor_RosterIsACopy(t *testing.T) {
	e := NewEditor(nil)
	require.NoError(t, e.Generate(testConfig()))

	r := e.Roster()
	r[0].Agents[1].Route[0].LatDeg = 999
	r[0].Agents[1].Network[0] = "x"

	fresh := e.Roster()
	assert.NotEqual(t, 999.0, fresh[0].Agents[1].Route[0].LatDeg)
	assert.Equal(t, "A_M00", fresh[0].Agents[1].Network[0])
}

func TestEditor_DocumentDoesNotAlias(t *testing.T) {
	e := NewEditor(nil)
	require.NoError(t, e.Generate(testConfig()))

	doc, err := e.Document(nil)
	require.NoError(t, err)
	lat := doc.Teams[0].Agents[1].Route[1].LatDeg

	require.NoError(t, e.MoveWaypoint(0, 1, 1, lat+1, 0))
	assert.Equal(t, lat, doc.Teams[0].Agents[1].Route[1].LatDeg)
	assert.Equal(t, DefaultPerformance(), doc.Performance)
}

func TestEditor_LoadDocument(t *testing.T) {
	gen, err := Generate(seeded(testConfig(), 11), nil)
	require.NoError(t, err)
	perf := core.Performance{core.RoleScout: {"comm_range_m": 1}}
	doc := Assemble(perf, gen)

	e := NewEditor(nil)
	e.Load(doc)
	require.NoError(t, e.MoveWaypoint(1, 0, 0, 2, 3))

	out, err := e.Document(nil)
	require.NoError(t, err)
	assert.Equal(t, perf, out.Performance)
	assert.Equal(t, 2.0, out.Teams[1].Agents[0].Route[0].LatDeg)

	// the source document is untouched
	assert.Equal(t, commandB.Lat, doc.Teams[1].Agents[0].Route[0].LatDeg)

	override := core.Performance{core.RoleAttacker: {"bom_range_m": 5}}
	out, err = e.Document(override)
	require.NoError(t, err)
	assert.Equal(t, override, out.Performance)
}

func TestEditor_LoadWithoutPerformanceUsesDefaults(t *testing.T) {
	gen, err := Generate(testConfig(), nil)
	require.NoError(t, err)

	e := NewEditor(nil)
	e.Load(core.ScenarioDocument{Teams: gen})

	out, err := e.Document(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPerformance(), out.Performance)
}
