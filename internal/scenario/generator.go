package scenario

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/OCAP2/simtools/internal/geo"
	"github.com/OCAP2/simtools/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// maxStartSec bounds the random start offset of every non-commander agent.
const maxStartSec = 3600

// extraPoints is how many waypoints a route may have beyond MinPoints.
const extraPoints = 5

// Roster is the generated teams, A then B
type Roster []core.Team

// Clone returns a deep copy of the roster
func (r Roster) Clone() Roster {
	if r == nil {
		return nil
	}
	out := make(Roster, len(r))
	for i, t := range r {
		out[i] = cloneTeam(t)
	}
	return out
}

func cloneTeam(t core.Team) core.Team {
	agents := make([]core.Agent, len(t.Agents))
	for i, a := range t.Agents {
		agents[i] = a
		agents[i].Route = append([]core.Waypoint(nil), a.Route...)
		if a.Network != nil {
			agents[i].Network = append(make([]string, 0, len(a.Network)), a.Network...)
		}
	}
	t.Agents = agents
	return t
}

// NewRand returns a PCG-backed generator. A nil seed draws one at random.
func NewRand(seed *uint64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
}

// AgentID formats the ID of the index-th agent of a role, e.g. "A_S00".
// Commanders are always "<team>_CMD".
func AgentID(team core.TeamID, role core.Role, index int) string {
	if role == core.RoleCommander {
		return string(team) + "_CMD"
	}
	return fmt.Sprintf("%s_%s%02d", team, role.Initial(), index)
}

// Generate builds a two-team roster from cfg, drawing every random value
// from rng. A nil rng is replaced by NewRand(cfg.Seed).
func Generate(cfg Config, rng *rand.Rand) (Roster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(cfg.Seed)
	}

	g := generator{cfg: cfg, rng: rng}
	roster := make(Roster, 0, len(core.Teams))
	for _, id := range core.Teams {
		roster = append(roster, g.team(id))
	}

	m := newGeneratorMetrics()
	for _, t := range roster {
		m.agentsGenerated.Add(context.Background(), int64(len(t.Agents)),
			metric.WithAttributes(attribute.String("team", string(t.ID))))
	}
	return roster, nil
}

type generator struct {
	cfg Config
	rng *rand.Rand
}

func (g *generator) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.rng.Float64()
}

func (g *generator) speed() float64 {
	return g.uniform(g.cfg.MinSpeedKph, g.cfg.MaxSpeedKph)
}

func (g *generator) team(id core.TeamID) core.Team {
	tc := g.cfg.Team(id)
	command := *tc.Command
	target := *g.cfg.Team(opponent(id)).Command

	team := core.Team{
		ID:     id,
		Name:   tc.Name,
		Agents: make([]core.Agent, 0, 1+tc.Scouts+tc.Messengers+tc.Attackers),
	}

	team.Agents = append(team.Agents, core.Agent{
		ID:       AgentID(id, core.RoleCommander, 0),
		Role:     core.RoleCommander,
		StartSec: 0,
		Route:    []core.Waypoint{{LatDeg: command.Lat, LonDeg: command.Lon}},
	})

	// messenger IDs are deterministic, so scouts can reference them before
	// the messengers themselves are drawn
	messengers := make([]string, tc.Messengers)
	for i := range messengers {
		messengers[i] = AgentID(id, core.RoleMessenger, i)
	}

	for _, role := range core.Roles[1:] {
		for i := 0; i < tc.Count(role); i++ {
			a := g.agent(id, role, i, command, target)
			if role == core.RoleScout {
				a.Network = append(make([]string, 0, len(messengers)), messengers...)
			}
			team.Agents = append(team.Agents, a)
		}
	}
	return team
}

func (g *generator) agent(team core.TeamID, role core.Role, index int, command, target core.LatLon) core.Agent {
	dx := g.uniform(-g.cfg.SpawnDXM, g.cfg.SpawnDXM)
	dy := g.uniform(-g.cfg.SpawnDYM, g.cfg.SpawnDYM)
	spawn := geo.Offset(command, dx, dy)

	route := g.route(spawn, target)
	return core.Agent{
		ID:       AgentID(team, role, index),
		Role:     role,
		StartSec: g.rng.IntN(maxStartSec + 1),
		Route:    route,
	}
}

// route interpolates from spawn to target and perturbs interior points only.
func (g *generator) route(spawn, target core.LatLon) []core.Waypoint {
	n := 2
	if g.cfg.MinPoints >= 2 {
		n = g.cfg.MinPoints + g.rng.IntN(extraPoints+1)
	}

	route := make([]core.Waypoint, n)
	route[0] = core.Waypoint{LatDeg: spawn.Lat, LonDeg: spawn.Lon, SpeedKph: g.speed()}

	noise := g.cfg.NoiseScaleDeg
	for i := 1; i < n-1; i++ {
		ratio := float64(i) / float64(n-1)
		lat := spawn.Lat + (target.Lat-spawn.Lat)*ratio + g.uniform(-noise, noise)
		lon := spawn.Lon + (target.Lon-spawn.Lon)*ratio + g.uniform(-noise, noise)
		route[i] = core.Waypoint{LatDeg: lat, LonDeg: lon, SpeedKph: g.speed()}
	}

	route[n-1] = core.Waypoint{LatDeg: target.Lat, LonDeg: target.Lon}
	return route
}

func opponent(id core.TeamID) core.TeamID {
	if id == core.TeamA {
		return core.TeamB
	}
	return core.TeamA
}
