package czml

import (
	"strings"
	"testing"
	"time"
)

// TestCatalogNumber verifies extraction of the parenthesized suffix.
func TestCatalogNumber(t *testing.T) {
	tests := []struct {
		id     string
		want   int
		wantOK bool
	}{
		{"Satellite (100)", 100, true},
		{"STARLINK-1234 (44714)", 44714, true},
		{"ISS (ZARYA) (25544)", 25544, true},
		{"Satellite (100) ", 100, true},
		{"document", 0, false},
		{"Satellite", 0, false},
		{"Satellite (abc)", 0, false},
		{"(100) Satellite", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := Packet{ID: tt.id}.CatalogNumber()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("CatalogNumber(%q) = (%d, %v), want (%d, %v)", tt.id, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// TestCanonicalID verifies string/number identity coercion.
func TestCanonicalID(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{25544, "25544"},
		{int64(25544), "25544"},
		{float64(25544), "25544"},
		{"25544", "25544"},
		{" 25544 ", "25544"},
		{"025544", "25544"},
		{"ZARYA", "ZARYA"},
	}
	for _, tt := range tests {
		if got := CanonicalID(tt.in); got != tt.want {
			t.Errorf("CanonicalID(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestIsGlobal verifies document/clock packets are recognized.
func TestIsGlobal(t *testing.T) {
	if !(Packet{ID: "document"}).IsGlobal() {
		t.Error("document packet should be global")
	}
	if !(Packet{ID: "custom-clock", Clock: &Clock{Multiplier: 10}}).IsGlobal() {
		t.Error("packet with clock should be global")
	}
	if (Packet{ID: "Satellite (100)"}).IsGlobal() {
		t.Error("object packet should not be global")
	}
}

// TestParseDocument verifies parsing a minimal CZML array.
func TestParseDocument(t *testing.T) {
	doc := `[
	  {"id": "document", "name": "Satellite Time Series", "version": "1.0",
	   "clock": {"interval": "2026-08-23T00:00:00Z/2026-08-24T00:00:00Z",
	             "currentTime": "2026-08-23T00:00:00Z", "multiplier": 60,
	             "range": "LOOP_STOP", "step": "SYSTEM_CLOCK_MULTIPLIER"}},
	  {"id": "ISS (ZARYA) (25544)", "name": "ISS (ZARYA)",
	   "availability": "2026-08-23T00:00:00Z/2026-08-24T00:00:00Z",
	   "position": {"epoch": "2026-08-23T00:00:00Z",
	                "cartesian": [0, 6778000, 0, 0, 300, 6700000, 1000000, 200000],
	                "interpolationAlgorithm": "LAGRANGE", "interpolationDegree": 1},
	   "point": {"pixelSize": 10}}
	]`

	packets, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(packets))
	}
	if !packets[0].IsGlobal() {
		t.Error("first packet should be the document packet")
	}
	if packets[0].Clock == nil || packets[0].Clock.Multiplier != 60 {
		t.Error("document clock not parsed")
	}

	n, ok := packets[1].CatalogNumber()
	if !ok || n != 25544 {
		t.Errorf("object catalog number: got (%d, %v)", n, ok)
	}
	if len(packets[1].Position.Cartesian) != 8 {
		t.Errorf("cartesian samples: got %d values, want 8", len(packets[1].Position.Cartesian))
	}
}

// TestDocumentBuilder verifies the generated document packet shape.
func TestDocumentBuilder(t *testing.T) {
	start := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	stop := start.Add(24 * time.Hour)

	doc := Document("Conjunction Trajectories", start, stop, 60)
	if doc.ID != DocumentID || !doc.IsGlobal() {
		t.Fatal("builder did not produce a global document packet")
	}
	if doc.Clock.Interval != "2026-08-23T12:00:00Z/2026-08-24T12:00:00Z" {
		t.Errorf("interval: got %q", doc.Clock.Interval)
	}
	if doc.Clock.CurrentTime != "2026-08-23T12:00:00Z" {
		t.Errorf("currentTime: got %q", doc.Clock.CurrentTime)
	}
	if doc.Clock.Range != "LOOP_STOP" {
		t.Errorf("range: got %q", doc.Clock.Range)
	}
}

// TestObjectID verifies the identifier round-trips through extraction.
func TestObjectID(t *testing.T) {
	id := ObjectID("STARLINK-1234", 44714)
	n, ok := Packet{ID: id}.CatalogNumber()
	if !ok || n != 44714 {
		t.Errorf("round trip failed: id=%q extracted=(%d,%v)", id, n, ok)
	}
}
