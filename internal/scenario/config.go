package scenario

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/simtools/pkg/core"
)

var (
	// ErrInvalidCount is returned for a negative unit count
	ErrInvalidCount = errors.New("invalid unit count")
	// ErrInvalidSpeedRange is returned when the speed bounds are negative or reversed
	ErrInvalidSpeedRange = errors.New("invalid speed range")
	// ErrNotFinite is returned for NaN or infinite numeric input
	ErrNotFinite = errors.New("value is not finite")
	// ErrMissingField is returned when a required input is absent
	ErrMissingField = errors.New("missing required field")
	// ErrIndexOutOfRange is returned by waypoint edits addressing nothing
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrNoRoster is returned when editing before anything was generated or loaded
	ErrNoRoster = errors.New("no roster")
)

// ConfigError reports which generator input was rejected
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TeamConfig holds per-team generator input
type TeamConfig struct {
	Name       string
	Command    *core.LatLon
	Scouts     int
	Messengers int
	Attackers  int
}

// Count returns the number of units of a non-commander role
func (tc TeamConfig) Count(role core.Role) int {
	switch role {
	case core.RoleScout:
		return tc.Scouts
	case core.RoleMessenger:
		return tc.Messengers
	case core.RoleAttacker:
		return tc.Attackers
	}
	return 0
}

// Config is the full input of Generate.
// SpawnDXM and SpawnDYM are half-extents of the spawn rectangle around the
// command position, in meters.
type Config struct {
	A TeamConfig
	B TeamConfig

	SpawnDXM      float64
	SpawnDYM      float64
	MinSpeedKph   float64
	MaxSpeedKph   float64
	MinPoints     int
	NoiseScaleDeg float64

	// Seed makes the output reproducible when set
	Seed *uint64
}

// DefaultConfig returns the generator defaults. Command positions are left
// unset and must be provided by the caller.
func DefaultConfig() Config {
	return Config{
		A:             TeamConfig{Name: "Alpha Team", Scouts: 10, Messengers: 20, Attackers: 50},
		B:             TeamConfig{Name: "Bravo Team", Scouts: 10, Messengers: 20, Attackers: 50},
		SpawnDXM:      10000,
		SpawnDYM:      30000,
		MinSpeedKph:   20,
		MaxSpeedKph:   80,
		MinPoints:     5,
		NoiseScaleDeg: 0.1,
	}
}

// Team returns the configuration of the given team
func (c Config) Team(id core.TeamID) TeamConfig {
	if id == core.TeamB {
		return c.B
	}
	return c.A
}

// Validate checks the config and returns a *ConfigError for the first problem.
func (c Config) Validate() error {
	for _, id := range core.Teams {
		tc := c.Team(id)
		prefix := "team" + string(id)
		if tc.Command == nil {
			return &ConfigError{Field: prefix + ".command", Err: ErrMissingField}
		}
		if !finite(tc.Command.Lat) || !finite(tc.Command.Lon) {
			return &ConfigError{
				Field: prefix + ".command",
				Err:   fmt.Errorf("%w: %g,%g", ErrNotFinite, tc.Command.Lat, tc.Command.Lon),
			}
		}
		for _, role := range core.Roles[1:] {
			if n := tc.Count(role); n < 0 {
				return &ConfigError{
					Field: fmt.Sprintf("%s.%ss", prefix, role),
					Err:   fmt.Errorf("%w: %d", ErrInvalidCount, n),
				}
			}
		}
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"minSpeedKph", c.MinSpeedKph},
		{"maxSpeedKph", c.MaxSpeedKph},
	} {
		if !finite(f.value) {
			return &ConfigError{
				Field: f.name,
				Err:   fmt.Errorf("%w: %g is not finite", ErrInvalidSpeedRange, f.value),
			}
		}
	}
	if c.MinSpeedKph < 0 {
		return &ConfigError{
			Field: "minSpeedKph",
			Err:   fmt.Errorf("%w: %g is negative", ErrInvalidSpeedRange, c.MinSpeedKph),
		}
	}
	if c.MinSpeedKph > c.MaxSpeedKph {
		return &ConfigError{
			Field: "maxSpeedKph",
			Err:   fmt.Errorf("%w: min %g > max %g", ErrInvalidSpeedRange, c.MinSpeedKph, c.MaxSpeedKph),
		}
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"spawnDxM", c.SpawnDXM},
		{"spawnDyM", c.SpawnDYM},
		{"noiseScaleDeg", c.NoiseScaleDeg},
	} {
		if !finite(f.value) {
			return &ConfigError{Field: f.name, Err: fmt.Errorf("%w: %g", ErrNotFinite, f.value)}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
