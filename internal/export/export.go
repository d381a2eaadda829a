// Package export renders conjunction records into shareable text: a
// human-readable report block and a mailto URL that opens a prefilled
// message in the user's mail client.
package export

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/conwatch/conwatch/internal/catalog"
)

// Subject is the mail subject line for a single conjunction report.
func Subject(c catalog.Conjunction) string {
	return fmt.Sprintf("%s Conjunction alert: %s / %s",
		c.AlertLevel.Symbol(), c.Sat1.Name, c.Sat2.Name)
}

// Message renders one conjunction as a report block.
func Message(c catalog.Conjunction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s ALERT\n", c.AlertLevel.Symbol(), c.AlertLevel)
	fmt.Fprintf(&b, "Time of closest approach: %s\n", c.TCATime.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Miss distance: %.3f km\n", c.DistanceKm)
	if c.RelativeVelocityKmS > 0 {
		fmt.Fprintf(&b, "Relative velocity: %.2f km/s\n", c.RelativeVelocityKmS)
	}
	b.WriteString("\n")
	writeSatellite(&b, "Object 1", c.Sat1)
	b.WriteString("\n")
	writeSatellite(&b, "Object 2", c.Sat2)
	return b.String()
}

func writeSatellite(b *strings.Builder, label string, s catalog.Satellite) {
	fmt.Fprintf(b, "%s: %s (catalog %d)\n", label, s.Name, s.CatalogNumber)
	if r := s.Position.Norm(); r > 0 {
		fmt.Fprintf(b, "  Altitude at TCA: %.1f km\n", r-6371.0)
	}
	if v := s.Velocity.Norm(); v > 0 {
		fmt.Fprintf(b, "  Speed at TCA: %.2f km/s\n", v)
	}
}

// MailtoURL builds a mailto link for the conjunction. Mail clients expect
// %20 rather than + for spaces in the query, so the encoded form is
// rewritten accordingly.
func MailtoURL(recipient string, c catalog.Conjunction) string {
	q := url.Values{}
	q.Set("subject", Subject(c))
	q.Set("body", Message(c))
	encoded := strings.ReplaceAll(q.Encode(), "+", "%20")
	return "mailto:" + url.PathEscape(recipient) + "?" + encoded
}
