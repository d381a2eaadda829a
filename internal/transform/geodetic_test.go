package transform

import (
	"math"
	"testing"
)

func TestECEFToGeodetic_Equator(t *testing.T) {
	// A point on the equator at the prime meridian, on the ellipsoid surface.
	g := ECEFToGeodetic(wgs84A, 0, 0)

	if math.Abs(g.LatDeg) > 1e-6 {
		t.Errorf("latitude: got %.8f, want 0", g.LatDeg)
	}
	if math.Abs(g.LonDeg) > 1e-6 {
		t.Errorf("longitude: got %.8f, want 0", g.LonDeg)
	}
	if math.Abs(g.AltM) > 0.01 {
		t.Errorf("altitude: got %.4f m, want ~0", g.AltM)
	}
}

func TestECEFToGeodetic_Pole(t *testing.T) {
	// North pole on the ellipsoid surface (polar radius ~6356752.3 m).
	const polarRadius = wgs84A * (1 - wgs84F)
	g := ECEFToGeodetic(0, 0, polarRadius)

	if math.Abs(g.LatDeg-90.0) > 1e-4 {
		t.Errorf("latitude: got %.6f, want 90", g.LatDeg)
	}
	if math.Abs(g.AltM) > 1.0 {
		t.Errorf("altitude: got %.2f m, want ~0", g.AltM)
	}
}

func TestECEFToGeodetic_LEOAltitude(t *testing.T) {
	// 400 km above the equator at longitude 90°E.
	g := ECEFToGeodetic(0, wgs84A+400000, 0)

	if math.Abs(g.LonDeg-90.0) > 1e-6 {
		t.Errorf("longitude: got %.8f, want 90", g.LonDeg)
	}
	if math.Abs(g.AltM-400000) > 1.0 {
		t.Errorf("altitude: got %.1f m, want 400000", g.AltM)
	}
}

func TestECEFToGeodetic_MidLatitude(t *testing.T) {
	// Round trip: build ECEF from a known geodetic point, convert back.
	latDeg, lonDeg, altM := 40.7128, -74.006, 420000.0
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	sinLat := math.Sin(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	x := (N + altM) * math.Cos(lat) * math.Cos(lon)
	y := (N + altM) * math.Cos(lat) * math.Sin(lon)
	z := (N*(1-wgs84E2) + altM) * sinLat

	g := ECEFToGeodetic(x, y, z)
	if math.Abs(g.LatDeg-latDeg) > 1e-5 {
		t.Errorf("latitude: got %.7f, want %.7f", g.LatDeg, latDeg)
	}
	if math.Abs(g.LonDeg-lonDeg) > 1e-5 {
		t.Errorf("longitude: got %.7f, want %.7f", g.LonDeg, lonDeg)
	}
	if math.Abs(g.AltM-altM) > 0.5 {
		t.Errorf("altitude: got %.2f, want %.2f", g.AltM, altM)
	}
}
