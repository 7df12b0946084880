package scenario

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/simtools/pkg/core"
)

// Editor holds the roster being authored. A failed Generate keeps the
// previous roster; a successful one discards it entirely.
type Editor struct {
	mu          sync.Mutex
	roster      Roster
	performance core.Performance
	logger      *slog.Logger
}

// NewEditor creates an editor with no roster. A nil logger uses slog.Default().
func NewEditor(logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{logger: logger}
}

// Generate replaces the roster with a freshly generated one
func (e *Editor) Generate(cfg Config) error {
	roster, err := Generate(cfg, nil)
	if err != nil {
		e.logger.Warn("Scenario generation rejected", "error", err)
		return err
	}

	e.mu.Lock()
	e.roster = roster
	e.mu.Unlock()

	e.logger.Info("Scenario generated",
		"teamA", len(roster[0].Agents),
		"teamB", len(roster[1].Agents),
		"seeded", cfg.Seed != nil)
	return nil
}

// Load replaces the roster with the teams of an existing document and keeps
// its performance parameters for Document.
func (e *Editor) Load(doc core.ScenarioDocument) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roster = Roster(doc.Teams).Clone()
	if e.roster == nil {
		e.roster = Roster{}
	}
	e.performance = nil
	if doc.Performance != nil {
		e.performance = clonePerformance(doc.Performance)
	}
}

// Roster returns a copy of the current roster, or nil before the first
// Generate or Load.
func (e *Editor) Roster() Roster {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roster.Clone()
}

// MoveWaypoint replaces the coordinates of one waypoint. Neighbouring
// waypoints, speeds and scout networks are left untouched.
func (e *Editor) MoveWaypoint(team, agent, waypoint int, lat, lon float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.roster == nil {
		return ErrNoRoster
	}
	if team < 0 || team >= len(e.roster) {
		return fmt.Errorf("%w: team %d", ErrIndexOutOfRange, team)
	}
	agents := e.roster[team].Agents
	if agent < 0 || agent >= len(agents) {
		return fmt.Errorf("%w: team %d agent %d", ErrIndexOutOfRange, team, agent)
	}
	route := agents[agent].Route
	if waypoint < 0 || waypoint >= len(route) {
		return fmt.Errorf("%w: team %d agent %d waypoint %d", ErrIndexOutOfRange, team, agent, waypoint)
	}

	route[waypoint].LatDeg = lat
	route[waypoint].LonDeg = lon
	e.logger.Debug("Waypoint moved",
		"agent", agents[agent].ID,
		"waypoint", waypoint,
		"lat", lat,
		"lon", lon)
	return nil
}

// Document assembles the current roster. A nil perf falls back to the
// parameters of a loaded document, then to DefaultPerformance.
func (e *Editor) Document(perf core.Performance) (core.ScenarioDocument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.roster == nil {
		return core.ScenarioDocument{}, ErrNoRoster
	}
	if perf == nil {
		perf = e.performance
	}
	if perf == nil {
		perf = DefaultPerformance()
	}
	return Assemble(perf, e.roster), nil
}
