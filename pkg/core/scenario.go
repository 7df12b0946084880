// pkg/core/scenario.go
package core

import "encoding/json"

// Waypoint is one point of a route.
// SpeedKph is serialized as "speeds_kph" for compatibility with the simulators.
type Waypoint struct {
	LatDeg   float64 `json:"lat_deg"`
	LonDeg   float64 `json:"lon_deg"`
	AltM     float64 `json:"alt_m"`
	SpeedKph float64 `json:"speeds_kph"`
}

// Agent is one simulated entity of a team.
// Network (scouts only) names messenger agents of the same team; it is a
// reference list captured at generation time and owns nothing.
type Agent struct {
	ID       string     `json:"id"`
	Role     Role       `json:"role"`
	StartSec int        `json:"start_sec"`
	Route    []Waypoint `json:"route"`
	Network  []string   `json:"network,omitempty"`
}

// MarshalJSON always emits "network" for scouts, even when it is empty.
func (a Agent) MarshalJSON() ([]byte, error) {
	type plain Agent
	if a.Role != RoleScout {
		return json.Marshal(plain(a))
	}
	network := a.Network
	if network == nil {
		network = []string{}
	}
	return json.Marshal(struct {
		plain
		Network []string `json:"network"`
	}{plain: plain(a), Network: network})
}

// Team owns its agents. Agents is serialized as "objects".
type Team struct {
	ID     TeamID  `json:"id"`
	Name   string  `json:"name"`
	Agents []Agent `json:"objects"`
}

// Capabilities maps a capability name (e.g. "comm_range_m") to its value
type Capabilities map[string]float64

// Performance holds static capability parameters per role
type Performance map[Role]Capabilities

// ScenarioDocument is the exported scenario consumed by the simulators
type ScenarioDocument struct {
	Performance Performance `json:"performance"`
	Teams       []Team      `json:"teams"`
}
