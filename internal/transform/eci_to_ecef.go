// Package transform provides coordinate frame transformations for satellite
// positions.
//
// Trajectory samples and propagator output are inertial (ECI, TEME
// realization); the globe and geodetic readouts are Earth-fixed (ECEF).
// The rotation between them uses GMST only (ECI to PEF, treated as ECEF),
// ignoring polar motion and the equation of equinoxes. That introduces at
// most ~50m of error, small enough for visualization and telemetry readouts.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// PositionECI represents a position and velocity in the inertial frame.
type PositionECI struct {
	X, Y, Z    float64 // km
	VX, VY, VZ float64 // km/s
}

// PositionECEF represents a position and velocity in the Earth-fixed frame.
type PositionECEF struct {
	X, Y, Z    float64 // meters
	VX, VY, VZ float64 // m/s
}

// ECIToECEF transforms an inertial position/velocity to ECEF at the given
// UTC time. Input in km and km/s, output in meters and m/s.
func ECIToECEF(eci PositionECI, t time.Time) PositionECEF {
	gmst := GMST(t)
	return ECIToECEFWithGMST(eci, gmst)
}

// ECIToECEFWithGMST transforms ECI to ECEF using a precomputed GMST angle
// (radians). Useful when converting many satellites at the same instant.
//
// Position transform: r_ECEF = R3(θ) * r_ECI
// Velocity transform: v_ECEF = R3(θ) * v_ECI - ω × r_ECEF
//
// where R3(θ) is a rotation about the Z-axis by angle θ (GMST),
// and ω = [0, 0, ω_earth] is Earth's angular velocity vector.
func ECIToECEFWithGMST(eci PositionECI, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	xECEF := eci.X*cosG + eci.Y*sinG
	yECEF := -eci.X*sinG + eci.Y*cosG
	zECEF := eci.Z

	// v_ECEF = R3(θ) * v_ECI - ω × r_ECEF
	// ω × r_ECEF = [-ω*y_ECEF, ω*x_ECEF, 0]
	vxRot := eci.VX*cosG + eci.VY*sinG
	vyRot := -eci.VX*sinG + eci.VY*cosG
	vzRot := eci.VZ

	vxECEF := vxRot + OmegaEarth*yECEF
	vyECEF := vyRot - OmegaEarth*xECEF
	vzECEF := vzRot

	return PositionECEF{
		X:  xECEF * 1000.0,
		Y:  yECEF * 1000.0,
		Z:  zECEF * 1000.0,
		VX: vxECEF * 1000.0,
		VY: vyECEF * 1000.0,
		VZ: vzECEF * 1000.0,
	}
}

// ValidateECEF checks that an ECEF position is physically reasonable for
// an Earth-orbiting satellite.
// Expected: magnitude between Earth radius (~6371km) and ~50000km (high orbit).
func ValidateECEF(pos PositionECEF) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)

	// Earth radius is ~6371km. LEO is ~6571-6971km. GEO is ~42164km.
	const minRadius = 6200.0 * 1000.0
	const maxRadius = 50000.0 * 1000.0

	return mag >= minRadius && mag <= maxRadius
}
