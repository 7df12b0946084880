// pkg/core/trace.go
package core

// PositionRecord is one agent's position inside a recorded frame.
// Records are value data and are never mutated once loaded.
type PositionRecord struct {
	AgentID string  `json:"agent_id"`
	TeamID  TeamID  `json:"team_id"`
	Role    Role    `json:"role"`
	LatDeg  float64 `json:"lat_deg"`
	LonDeg  float64 `json:"lon_deg"`
	AltM    float64 `json:"alt_m,omitempty"`
}

// Frame is the set of all agent positions recorded at one timestamp
type Frame struct {
	TimeSec   int64            `json:"time_sec"`
	Positions []PositionRecord `json:"positions"`
}
