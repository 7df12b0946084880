package scenario

import "github.com/OCAP2/simtools/pkg/core"

// DefaultPerformance returns the capability parameters the simulators expect
// when none are configured.
func DefaultPerformance() core.Performance {
	return core.Performance{
		core.RoleScout:     {"comm_range_m": 5000, "detect_range_m": 10000},
		core.RoleMessenger: {"comm_range_m": 8000},
		core.RoleAttacker:  {"bom_range_m": 1000},
	}
}

// Assemble bundles performance parameters and a roster into an exportable
// document. Both inputs are copied, so later edits to either do not leak into
// the document.
func Assemble(perf core.Performance, roster Roster) core.ScenarioDocument {
	doc := core.ScenarioDocument{
		Performance: clonePerformance(perf),
		Teams:       roster.Clone(),
	}
	if doc.Teams == nil {
		doc.Teams = []core.Team{}
	}
	return doc
}

func clonePerformance(perf core.Performance) core.Performance {
	out := make(core.Performance, len(perf))
	for role, caps := range perf {
		c := make(core.Capabilities, len(caps))
		for k, v := range caps {
			c[k] = v
		}
		out[role] = c
	}
	return out
}
