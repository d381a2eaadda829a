package export

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/conwatch/conwatch/internal/catalog"
)

func testConjunction() catalog.Conjunction {
	return catalog.Conjunction{
		AlertLevel:          catalog.AlertRed,
		TCATime:             time.Date(2026, 8, 24, 3, 15, 42, 0, time.UTC),
		DistanceKm:          0.8,
		RelativeVelocityKmS: 14.2,
		Sat1: catalog.Satellite{
			Name: "ISS (ZARYA)", CatalogNumber: 25544,
			Position: catalog.Position{X: 6771, Y: 0, Z: 0},
			Velocity: catalog.Velocity{VX: 0, VY: 7.66, VZ: 0},
		},
		Sat2: catalog.Satellite{
			Name: "COSMOS 2251 DEB", CatalogNumber: 34400,
			Position: catalog.Position{X: 6771.5, Y: 0, Z: 0},
		},
	}
}

// TestMessage verifies the report block carries the alert symbol, timing
// and both objects.
func TestMessage(t *testing.T) {
	msg := Message(testConjunction())

	for _, want := range []string{
		"[!!!] RED ALERT",
		"Time of closest approach: 2026-08-24 03:15:42 UTC",
		"Miss distance: 0.800 km",
		"Relative velocity: 14.20 km/s",
		"ISS (ZARYA) (catalog 25544)",
		"COSMOS 2251 DEB (catalog 34400)",
		"Altitude at TCA: 400.0 km",
		"Speed at TCA: 7.66 km/s",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

// TestMessageOmitsUnknownVelocity verifies zero velocity lines are dropped.
func TestMessageOmitsUnknownVelocity(t *testing.T) {
	c := testConjunction()
	c.RelativeVelocityKmS = 0
	msg := Message(c)
	if strings.Contains(msg, "Relative velocity") {
		t.Error("zero relative velocity should be omitted")
	}
}

// TestSubject verifies the subject line shape.
func TestSubject(t *testing.T) {
	got := Subject(testConjunction())
	want := "[!!!] Conjunction alert: ISS (ZARYA) / COSMOS 2251 DEB"
	if got != want {
		t.Errorf("subject: got %q, want %q", got, want)
	}
}

// TestMailtoURL verifies encoding: spaces as %20, parseable query, and
// a round-trippable body.
func TestMailtoURL(t *testing.T) {
	link := MailtoURL("ops@example.com", testConjunction())

	if !strings.HasPrefix(link, "mailto:ops@example.com?") {
		t.Fatalf("link prefix: got %q", link)
	}
	if strings.Contains(link, "+") {
		t.Error("mailto query must encode spaces as %20, not +")
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parsing link: %v", err)
	}
	q := u.Query()
	if !strings.Contains(q.Get("subject"), "Conjunction alert") {
		t.Errorf("subject param: got %q", q.Get("subject"))
	}
	if !strings.Contains(q.Get("body"), "Miss distance: 0.800 km") {
		t.Errorf("body param missing distance line")
	}
}
