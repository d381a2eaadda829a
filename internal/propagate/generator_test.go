package propagate

import (
	"context"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/conwatch/conwatch/internal/scene"
	"github.com/conwatch/conwatch/internal/tle"
)

// ISS TLE (epoch 2024, will still propagate reasonably for nearby times).
const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

// Starlink TLE (typical LEO constellation satellite).
const (
	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// TestPropagateSingle verifies SGP4 output magnitude for an ISS-like orbit.
func TestPropagateSingle(t *testing.T) {
	prop, err := NewSGP4Propagator(issLine1, issLine2, 25544)
	if err != nil {
		t.Fatalf("NewSGP4Propagator failed: %v", err)
	}

	target := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	eci, err := prop.Propagate(target.Year(), int(target.Month()), target.Day(), target.Hour(), target.Minute(), target.Second())
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	// Expected: ~6371 + 420 ≈ 6791 km.
	mag := math.Sqrt(eci.X*eci.X + eci.Y*eci.Y + eci.Z*eci.Z)
	if mag < 6500 || mag > 7000 {
		t.Errorf("position magnitude = %.1f km, expected ~6791 km (ISS orbit)", mag)
	}
}

// TestPropagateInvalidTLE verifies that an invalid TLE returns an error.
func TestPropagateInvalidTLE(t *testing.T) {
	_, err := NewSGP4Propagator("invalid line 1", "invalid line 2", 99999)
	if err == nil {
		t.Fatal("expected error for invalid TLE, got nil")
	}
}

// TestGenerateDocument verifies the generated document shape: one document
// packet plus one packet per satellite, in input order, with a sample
// series the scene can consume.
func TestGenerateDocument(t *testing.T) {
	g := NewGenerator(Config{
		Workers: 4,
		Step:    5 * time.Minute,
		Horizon: 30 * time.Minute,
	}, testLogger())

	entries := []tle.ElementSet{
		{CatalogNumber: 25544, Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2},
		{CatalogNumber: 44713, Name: "STARLINK-1007", Line1: starlinkLine1, Line2: starlinkLine2},
	}
	start := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

	packets, err := g.Generate(context.Background(), entries, start)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(packets) != 3 {
		t.Fatalf("got %d packets, want 3", len(packets))
	}
	if !packets[0].IsGlobal() {
		t.Error("first packet should be the document packet")
	}
	if packets[1].ID != "ISS (ZARYA) (25544)" || packets[2].ID != "STARLINK-1007 (44713)" {
		t.Errorf("packet order: got %q, %q", packets[1].ID, packets[2].ID)
	}

	// 30 min horizon at 5 min step: 7 samples of 4 values each.
	if got := len(packets[1].Position.Cartesian); got != 28 {
		t.Errorf("cartesian series: got %d values, want 28", got)
	}

	// The document must round-trip through the scene loader.
	ds, err := scene.NewDataSource(packets)
	if err != nil {
		t.Fatalf("scene rejected generated document: %v", err)
	}
	pos, ok := ds.Entities()[0].PositionAt(start.Add(7 * time.Minute))
	if !ok {
		t.Fatal("generated series did not interpolate")
	}
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6500 || mag > 7000 {
		t.Errorf("interpolated magnitude = %.1f km, expected ISS orbit", mag)
	}
}

// TestGenerateSkipsBadEntries verifies unparseable TLEs are skipped, not fatal.
func TestGenerateSkipsBadEntries(t *testing.T) {
	g := NewGenerator(Config{Workers: 2, Step: 10 * time.Minute, Horizon: 20 * time.Minute}, testLogger())

	entries := []tle.ElementSet{
		{CatalogNumber: 1, Name: "BROKEN", Line1: "garbage", Line2: "garbage"},
		{CatalogNumber: 25544, Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2},
	}
	packets, err := g.Generate(context.Background(), entries, time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("got %d packets, want document + 1 survivor", len(packets))
	}
	if packets[1].Name != "ISS (ZARYA)" {
		t.Errorf("survivor: got %q", packets[1].Name)
	}
}

// TestGenerateAllFailed verifies an empty survivor set is an error.
func TestGenerateAllFailed(t *testing.T) {
	g := NewGenerator(Config{Workers: 2}, testLogger())
	entries := []tle.ElementSet{{CatalogNumber: 1, Name: "BROKEN", Line1: "x", Line2: "y"}}
	if _, err := g.Generate(context.Background(), entries, time.Now()); err == nil {
		t.Fatal("expected error when every satellite fails")
	}
}

// TestGenerateEmptyInput verifies empty input is rejected.
func TestGenerateEmptyInput(t *testing.T) {
	g := NewGenerator(Config{}, testLogger())
	if _, err := g.Generate(context.Background(), nil, time.Now()); err == nil {
		t.Fatal("expected error for empty input")
	}
}
