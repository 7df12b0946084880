package scenario

import (
	"errors"
	"fmt"

	"github.com/OCAP2/simtools/pkg/core"
)

// StaleReference is a scout network entry that no longer names a messenger
// of the scout's team.
type StaleReference struct {
	Team    core.TeamID `json:"team"`
	ScoutID string      `json:"scout_id"`
	Ref     string      `json:"ref"`
}

func (s StaleReference) String() string {
	return fmt.Sprintf("team %s: scout %s references unknown messenger %s", s.Team, s.ScoutID, s.Ref)
}

// CheckReferences lists every stale scout network entry in doc. Networks are
// snapshots taken at generation time; nothing here repairs them.
func CheckReferences(doc core.ScenarioDocument) []StaleReference {
	var stale []StaleReference
	for _, team := range doc.Teams {
		messengers := make(map[string]bool)
		for _, a := range team.Agents {
			if a.Role == core.RoleMessenger {
				messengers[a.ID] = true
			}
		}
		for _, a := range team.Agents {
			if a.Role != core.RoleScout {
				continue
			}
			for _, ref := range a.Network {
				if !messengers[ref] {
					stale = append(stale, StaleReference{Team: team.ID, ScoutID: a.ID, Ref: ref})
				}
			}
		}
	}
	return stale
}

// Validate checks the structural invariants of a document: known team and
// role values, IDs unique within a team, non-negative start times and speeds,
// and route lengths (commanders at least 1 waypoint, everyone else at least 2).
// All problems are joined into one error.
func Validate(doc core.ScenarioDocument) error {
	var errs []error
	for ti, team := range doc.Teams {
		if !team.ID.Valid() {
			errs = append(errs, fmt.Errorf("teams[%d]: unknown team id %q", ti, team.ID))
		}
		seen := make(map[string]bool, len(team.Agents))
		for ai, a := range team.Agents {
			where := fmt.Sprintf("teams[%d].objects[%d]", ti, ai)
			if a.ID == "" {
				errs = append(errs, fmt.Errorf("%s: empty id", where))
			} else if seen[a.ID] {
				errs = append(errs, fmt.Errorf("%s: duplicate id %q", where, a.ID))
			}
			seen[a.ID] = true

			if !a.Role.Valid() {
				errs = append(errs, fmt.Errorf("%s: unknown role %q", where, a.Role))
			}
			if a.StartSec < 0 {
				errs = append(errs, fmt.Errorf("%s: negative start_sec %d", where, a.StartSec))
			}

			minLen := 2
			if a.Role == core.RoleCommander {
				minLen = 1
			}
			if len(a.Route) < minLen {
				errs = append(errs, fmt.Errorf("%s: route has %d waypoints, need %d", where, len(a.Route), minLen))
			}
			for wi, wp := range a.Route {
				if wp.SpeedKph < 0 {
					errs = append(errs, fmt.Errorf("%s.route[%d]: negative speed %g", where, wi, wp.SpeedKph))
				}
			}
		}
	}
	return errors.Join(errs...)
}
