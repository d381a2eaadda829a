// Package catalog holds the conjunction data model: close-approach records
// between tracked orbiting objects and the satellites they reference.
//
// The catalog is produced by the external collision-detection pipeline and
// consumed read-only. It is replaced wholesale on every refresh; there is
// no incremental merge.
package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// AlertLevel is the ordinal risk classification of a conjunction.
// Severity ordering: RED > YELLOW > GREEN.
type AlertLevel int

const (
	AlertGreen AlertLevel = iota
	AlertYellow
	AlertRed
)

// Alert distance thresholds from the detection pipeline:
// RED < 10 km, YELLOW 10-25 km, GREEN >= 25 km.
const (
	RedThresholdKm    = 10.0
	YellowThresholdKm = 25.0
)

// String returns the wire spelling used by the conjunction feed.
func (l AlertLevel) String() string {
	switch l {
	case AlertRed:
		return "RED"
	case AlertYellow:
		return "YELLOW"
	default:
		return "GREEN"
	}
}

// Symbol returns the console marker for the level, matching the
// detection pipeline's report output.
func (l AlertLevel) Symbol() string {
	switch l {
	case AlertRed:
		return "[!!!]"
	case AlertYellow:
		return "[!!]"
	default:
		return "[OK]"
	}
}

// ParseAlertLevel parses the feed spelling of an alert level.
func ParseAlertLevel(s string) (AlertLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RED":
		return AlertRed, nil
	case "YELLOW":
		return AlertYellow, nil
	case "GREEN":
		return AlertGreen, nil
	}
	return AlertGreen, fmt.Errorf("unknown alert level %q", s)
}

// MarshalJSON encodes the level as its feed spelling.
func (l AlertLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes the feed spelling of an alert level.
func (l *AlertLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAlertLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Position is an Earth-centered inertial position in km.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the vector magnitude in km.
func (p Position) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Velocity is an Earth-centered inertial velocity in km/s.
type Velocity struct {
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	VZ float64 `json:"vz"`
}

// Norm returns the vector magnitude in km/s.
func (v Velocity) Norm() float64 {
	return math.Sqrt(v.VX*v.VX + v.VY*v.VY + v.VZ*v.VZ)
}

// Satellite is a value type embedded in a Conjunction. It is not
// independently owned: the catalog number is the join key to the
// corresponding entity in the trajectory packet store, which is
// populated from a different source and reconciled by value.
type Satellite struct {
	Name          string   `json:"name"`
	CatalogNumber int      `json:"catalog"`
	Position      Position `json:"position"`
	Velocity      Velocity `json:"velocity"`
}

// Conjunction is a predicted close approach between two tracked objects.
// Records are immutable once loaded and replaced wholesale on refresh.
// Sat1/Sat2 ordering carries no semantics; the UI treats Sat1 as the
// target by convention only.
type Conjunction struct {
	AlertLevel          AlertLevel `json:"alert_level"`
	TCATime             time.Time  `json:"tca_time"`
	DistanceKm          float64    `json:"distance_km"`
	RelativeVelocityKmS float64    `json:"relative_velocity_km_s"`
	Sat1                Satellite  `json:"sat1"`
	Sat2                Satellite  `json:"sat2"`
}

// Valid reports whether the record is well-formed enough to display:
// finite non-negative distance and at least one resolvable satellite
// reference. Malformed records are excluded by the filter rather than
// failing the whole pipeline.
func (c Conjunction) Valid() bool {
	if math.IsNaN(c.DistanceKm) || c.DistanceKm < 0 {
		return false
	}
	if math.IsNaN(c.RelativeVelocityKmS) || c.RelativeVelocityKmS < 0 {
		return false
	}
	return c.Sat1.CatalogNumber > 0 || c.Sat2.CatalogNumber > 0
}

// Snapshot is a complete catalog from one fetch of the conjunction feed.
type Snapshot struct {
	Source       string
	FetchedAt    time.Time
	Conjunctions []Conjunction
}
