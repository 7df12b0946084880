// pkg/core/types.go
package core

import "strings"

// TeamID identifies one of the two opposing sides
type TeamID string

const (
	TeamA TeamID = "A"
	TeamB TeamID = "B"
)

// Teams lists team IDs in document order
var Teams = []TeamID{TeamA, TeamB}

// Valid reports whether t is a known team
func (t TeamID) Valid() bool {
	return t == TeamA || t == TeamB
}

// Role is the functional category of an agent
type Role string

const (
	RoleCommander Role = "commander"
	RoleScout     Role = "scout"
	RoleMessenger Role = "messenger"
	RoleAttacker  Role = "attacker"
)

// Roles lists every role in roster order (commander first)
var Roles = []Role{RoleCommander, RoleScout, RoleMessenger, RoleAttacker}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleCommander, RoleScout, RoleMessenger, RoleAttacker:
		return true
	}
	return false
}

// Initial returns the upper-case first letter used in agent IDs ("S" for scout).
func (r Role) Initial() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1]))
}

// LatLon is a geographic point in degrees
type LatLon struct {
	Lat float64 `json:"lat_deg"`
	Lon float64 `json:"lon_deg"`
}
