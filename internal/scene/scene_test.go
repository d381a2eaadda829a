package scene

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/conwatch/conwatch/internal/czml"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

var epoch = time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

func testPackets() []czml.Packet {
	interval := czml.Interval(epoch, epoch.Add(10*time.Minute))
	return []czml.Packet{
		czml.Document("Trajectories", epoch, epoch.Add(10*time.Minute), 60),
		{
			ID:           "SAT-A (100)",
			Name:         "SAT-A",
			Availability: interval,
			Position: &czml.Position{
				Epoch: "2026-08-23T00:00:00Z",
				// meters, 300s apart
				Cartesian: []float64{
					0, 6778000, 0, 0,
					300, 6778000, 2100000, 0,
					600, 6778000, 4200000, 0,
				},
			},
			Point: &czml.Point{PixelSize: 10},
		},
		{
			ID:           "SAT-B (200)",
			Name:         "SAT-B",
			Availability: interval,
			Position: &czml.Position{
				Epoch:     "2026-08-23T00:00:00Z",
				Cartesian: []float64{0, 0, 6778000, 0, 600, 0, 6778000, 100000},
			},
		},
	}
}

// TestDataSourceOrder verifies entities keep packet order and the
// document packet contributes clock and name.
func TestDataSourceOrder(t *testing.T) {
	ds, err := NewDataSource(testPackets())
	if err != nil {
		t.Fatalf("NewDataSource: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("entities: got %d, want 2", ds.Len())
	}
	if ds.Entities()[0].ID != "SAT-A (100)" || ds.Entities()[1].ID != "SAT-B (200)" {
		t.Error("entity order does not follow packet order")
	}
	if ds.Name != "Trajectories" {
		t.Errorf("source name: got %q", ds.Name)
	}
	if ds.Clock == nil || ds.Clock.Multiplier != 60 {
		t.Error("document clock not carried")
	}
	if _, ok := ds.Lookup("SAT-B (200)"); !ok {
		t.Error("lookup by packet id failed")
	}
}

// TestPositionInterpolation verifies linear interpolation between samples.
func TestPositionInterpolation(t *testing.T) {
	ds, err := NewDataSource(testPackets())
	if err != nil {
		t.Fatalf("NewDataSource: %v", err)
	}
	e := ds.Entities()[0]

	// Exactly on a sample.
	pos, ok := e.PositionAt(epoch.Add(300 * time.Second))
	if !ok {
		t.Fatal("position at sample time not available")
	}
	if pos.Y != 2100 { // km
		t.Errorf("Y at t=300s: got %f km, want 2100", pos.Y)
	}

	// Midway between samples 0 and 1.
	pos, ok = e.PositionAt(epoch.Add(150 * time.Second))
	if !ok {
		t.Fatal("interpolated position not available")
	}
	if pos.Y != 1050 {
		t.Errorf("Y at t=150s: got %f km, want 1050", pos.Y)
	}
	if pos.X != 6778 {
		t.Errorf("X at t=150s: got %f km, want 6778", pos.X)
	}

	// Outside the sampled interval.
	if _, ok := e.PositionAt(epoch.Add(time.Hour)); ok {
		t.Error("position past the last sample should not resolve")
	}
	if _, ok := e.PositionAt(epoch.Add(-time.Second)); ok {
		t.Error("position before the first sample should not resolve")
	}
}

// TestVelocityFiniteDifference verifies the velocity estimate.
func TestVelocityFiniteDifference(t *testing.T) {
	ds, err := NewDataSource(testPackets())
	if err != nil {
		t.Fatalf("NewDataSource: %v", err)
	}
	e := ds.Entities()[0]

	// 2100 km over 300 s in Y.
	vx, vy, vz, ok := e.VelocityAt(epoch.Add(150 * time.Second))
	if !ok {
		t.Fatal("velocity not available")
	}
	if vx != 0 || vz != 0 {
		t.Errorf("vx/vz: got %f/%f, want 0/0", vx, vz)
	}
	if vy != 7 {
		t.Errorf("vy: got %f km/s, want 7", vy)
	}
}

// TestDataSourceRejectsBadSeries verifies malformed position series fail.
func TestDataSourceRejectsBadSeries(t *testing.T) {
	packets := []czml.Packet{{
		ID:       "BAD (1)",
		Position: &czml.Position{Cartesian: []float64{0, 1, 2}},
	}}
	if _, err := NewDataSource(packets); err == nil {
		t.Error("expected error for non-multiple-of-4 series")
	}

	packets = []czml.Packet{{
		ID: "BAD (2)",
		Position: &czml.Position{
			Epoch:     "2026-08-23T00:00:00Z",
			Cartesian: []float64{300, 1, 1, 1, 0, 2, 2, 2},
		},
	}}
	if _, err := NewDataSource(packets); err == nil {
		t.Error("expected error for non-increasing sample offsets")
	}
}

// TestSurfaceAttachReplaces verifies a newer generation replaces the scene.
func TestSurfaceAttachReplaces(t *testing.T) {
	s := NewSurface(testLogger)
	ctx := context.Background()

	if _, err := s.Attach(ctx, 1, testPackets()); err != nil {
		t.Fatalf("attach gen 1: %v", err)
	}
	if _, err := s.Attach(ctx, 2, testPackets()[:2]); err != nil {
		t.Fatalf("attach gen 2: %v", err)
	}
	if s.Current().Len() != 1 {
		t.Errorf("current scene: got %d entities, want 1", s.Current().Len())
	}
	if s.Generation() != 2 {
		t.Errorf("generation: got %d, want 2", s.Generation())
	}
}

// TestSurfaceDiscardsStaleLoad verifies an older generation cannot land
// after a newer one.
func TestSurfaceDiscardsStaleLoad(t *testing.T) {
	s := NewSurface(testLogger)
	ctx := context.Background()

	if _, err := s.Attach(ctx, 2, testPackets()[:2]); err != nil {
		t.Fatalf("attach gen 2: %v", err)
	}
	_, err := s.Attach(ctx, 1, testPackets())
	if !errors.Is(err, ErrStale) {
		t.Fatalf("stale attach: got err %v, want ErrStale", err)
	}
	if s.Current().Len() != 1 {
		t.Error("stale load overwrote the newer scene")
	}
}

// TestSurfaceRelease verifies release empties the scene but keeps the
// generation watermark.
func TestSurfaceRelease(t *testing.T) {
	s := NewSurface(testLogger)
	ctx := context.Background()

	if _, err := s.Attach(ctx, 3, testPackets()); err != nil {
		t.Fatalf("attach: %v", err)
	}
	s.Release()
	if s.Current() != nil {
		t.Error("scene should be empty after release")
	}
	if _, err := s.Attach(ctx, 2, testPackets()); !errors.Is(err, ErrStale) {
		t.Error("pre-release generation should still be stale after release")
	}
}

// TestConfigTokenSetOnce verifies the access token cannot be replaced.
func TestConfigTokenSetOnce(t *testing.T) {
	var cfg Config
	if cfg.AccessToken() != "" {
		t.Error("unset token should be empty")
	}
	if err := cfg.SetAccessToken("tok-1"); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := cfg.SetAccessToken("tok-2"); !errors.Is(err, ErrTokenAlreadySet) {
		t.Errorf("second set: got %v, want ErrTokenAlreadySet", err)
	}
	if cfg.AccessToken() != "tok-1" {
		t.Errorf("token: got %q, want tok-1", cfg.AccessToken())
	}
}
