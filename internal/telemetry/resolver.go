// Package telemetry resolves on-screen objects into live readouts: name,
// catalog number, geodetic position, altitude and speed at the current
// simulated time, plus the camera move that frames a focused object.
package telemetry

import (
	"log/slog"
	"math"
	"time"

	"github.com/conwatch/conwatch/internal/czml"
	"github.com/conwatch/conwatch/internal/scene"
	"github.com/conwatch/conwatch/internal/transform"
)

// EarthRadiusKm is the mean Earth radius used for altitude readouts.
const EarthRadiusKm = 6371.0

// DisplayValidity is how long a resolved readout stays current before the
// client should re-resolve.
const DisplayValidity = 3 * time.Second

// Picker maps a screen point to the entity under it. The render surface
// supplies the implementation; a nil pick means empty space.
type Picker interface {
	PickAtScreenPoint(x, y float64) (entityID string, ok bool)
}

// CameraOffset is a camera pose relative to a tracked object.
type CameraOffset struct {
	HeadingDeg float64 `json:"heading_deg"`
	PitchDeg   float64 `json:"pitch_deg"`
	RangeM     float64 `json:"range_m"`
}

// DefaultCameraOffset frames a focused object from a fixed distance. The
// offset does not scale with the object's altitude; every focus lands the
// camera the same way.
var DefaultCameraOffset = CameraOffset{HeadingDeg: 0, PitchDeg: -45, RangeM: 2_500_000}

// FlyTo is a camera move request targeting one entity.
type FlyTo struct {
	EntityID string       `json:"entity_id"`
	Offset   CameraOffset `json:"offset"`
}

// CameraFunc receives camera move requests. The orchestrator installs one
// that forwards to connected clients.
type CameraFunc func(FlyTo)

// Telemetry is one object's readout at a simulated instant. When the
// position series does not resolve, PositionValid is false and only the
// identity fields are meaningful.
type Telemetry struct {
	EntityID      string  `json:"entity_id"`
	Name          string  `json:"name"`
	CatalogNumber int     `json:"catalog_number,omitempty"`
	TimeLabel     string  `json:"time_label"`
	PositionValid bool    `json:"position_valid"`
	AltitudeKm    float64 `json:"altitude_km,omitempty"`
	LatDeg        float64 `json:"lat_deg,omitempty"`
	LonDeg        float64 `json:"lon_deg,omitempty"`
	ECEFXKm       float64 `json:"ecef_x_km,omitempty"`
	ECEFYKm       float64 `json:"ecef_y_km,omitempty"`
	ECEFZKm       float64 `json:"ecef_z_km,omitempty"`
	HasVelocity   bool    `json:"has_velocity"`
	VelocityKmS   float64 `json:"velocity_km_s,omitempty"`
}

// FocusResult reports the outcome of a focus request.
type FocusResult struct {
	Found     bool      `json:"found"`
	EntityID  string    `json:"entity_id,omitempty"`
	Telemetry Telemetry `json:"telemetry"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Resolver turns picks and focus requests into telemetry and camera moves.
type Resolver struct {
	logger *slog.Logger
	picker Picker
	camera CameraFunc
	offset CameraOffset
}

// NewResolver creates a Resolver. picker may be nil when no hit-testing
// backend is attached; camera may be nil when no client consumes moves.
func NewResolver(logger *slog.Logger, picker Picker, camera CameraFunc) *Resolver {
	return &Resolver{
		logger: logger,
		picker: picker,
		camera: camera,
		offset: DefaultCameraOffset,
	}
}

// ResolveAtScreenPoint hit-tests the screen point against the scene and
// describes whatever is under it at simulated time t. A miss, an empty
// scene or a missing picker all return false.
func (r *Resolver) ResolveAtScreenPoint(ds *scene.DataSource, t time.Time, x, y float64) (Telemetry, bool) {
	if r.picker == nil || ds == nil {
		return Telemetry{}, false
	}
	id, ok := r.picker.PickAtScreenPoint(x, y)
	if !ok {
		return Telemetry{}, false
	}
	e, ok := ds.Lookup(id)
	if !ok {
		r.logger.Warn("picked entity not in scene", "entity_id", id)
		return Telemetry{}, false
	}
	return r.Describe(e, t), true
}

// FocusOn finds the first entity whose catalog number matches id (in
// registration order), moves the camera onto it and returns its readout.
// id may be a string or a number; comparison is canonical.
func (r *Resolver) FocusOn(ds *scene.DataSource, id any, t time.Time) FocusResult {
	if ds == nil {
		return FocusResult{}
	}
	want := czml.CanonicalID(id)
	for _, e := range ds.Entities() {
		if !e.HasCatalog || czml.CanonicalID(e.CatalogNumber) != want {
			continue
		}
		if r.camera != nil {
			r.camera(FlyTo{EntityID: e.ID, Offset: r.offset})
		}
		r.logger.Debug("focused entity", "entity_id", e.ID, "catalog_number", e.CatalogNumber)
		return FocusResult{
			Found:     true,
			EntityID:  e.ID,
			Telemetry: r.Describe(e, t),
			ExpiresAt: time.Now().Add(DisplayValidity),
		}
	}
	r.logger.Info("focus target not in scene", "catalog_id", want)
	return FocusResult{}
}

// Describe builds the readout for an entity at simulated time t. A
// position that does not resolve or is degenerate yields a partial
// readout with PositionValid false.
func (r *Resolver) Describe(e *scene.Entity, t time.Time) Telemetry {
	tel := Telemetry{
		EntityID:  e.ID,
		Name:      e.Name,
		TimeLabel: t.UTC().Format("2006-01-02 15:04:05 UTC"),
	}
	if e.HasCatalog {
		tel.CatalogNumber = e.CatalogNumber
	}

	eci, ok := e.PositionAt(t)
	if !ok || degenerate(eci) {
		return tel
	}

	tel.PositionValid = true
	tel.AltitudeKm = math.Sqrt(eci.X*eci.X+eci.Y*eci.Y+eci.Z*eci.Z) - EarthRadiusKm

	if vx, vy, vz, ok := e.VelocityAt(t); ok {
		eci.VX, eci.VY, eci.VZ = vx, vy, vz
		tel.HasVelocity = true
		tel.VelocityKmS = math.Sqrt(vx*vx + vy*vy + vz*vz)
	}

	ecef := transform.ECIToECEF(eci, t)
	tel.ECEFXKm = ecef.X / 1000.0
	tel.ECEFYKm = ecef.Y / 1000.0
	tel.ECEFZKm = ecef.Z / 1000.0

	g := transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)
	tel.LatDeg = g.LatDeg
	tel.LonDeg = g.LonDeg
	return tel
}

func degenerate(p transform.PositionECI) bool {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
		return true
	}
	return math.Sqrt(p.X*p.X+p.Y*p.Y+p.Z*p.Z) < 1.0
}
