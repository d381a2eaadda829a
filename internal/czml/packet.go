// Package czml models the time-tagged trajectory packets the render
// surface animates. The format follows the CZML convention: a JSON array
// whose first packet is a "document" packet carrying clock metadata, and
// each subsequent packet describes one object's position sampled over an
// availability interval.
//
// A packet's identifier encodes the object's catalog number as a
// parenthesized integer suffix, e.g. "STARLINK-1234 (44714)". That
// number is the join key to the conjunction catalog; CanonicalID is the
// single coercion point where string- and number-typed catalog
// identifiers are compared.
package czml

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Packet is one CZML packet. The document packet has ID "document" and a
// Clock; object packets have a Position.
type Packet struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Version      string    `json:"version,omitempty"`
	Availability string    `json:"availability,omitempty"`
	Clock        *Clock    `json:"clock,omitempty"`
	Position     *Position `json:"position,omitempty"`
	Point        *Point    `json:"point,omitempty"`
}

// Clock is the global animation metadata carried by the document packet.
type Clock struct {
	Interval    string  `json:"interval"`
	CurrentTime string  `json:"currentTime"`
	Multiplier  float64 `json:"multiplier"`
	Range       string  `json:"range"`
	Step        string  `json:"step"`
}

// Position is a time-indexed position series. Cartesian holds flattened
// [offsetSeconds, x, y, z, ...] samples in meters relative to Epoch.
type Position struct {
	Epoch                  string    `json:"epoch,omitempty"`
	Cartesian              []float64 `json:"cartesian,omitempty"`
	CartographicDegrees    []float64 `json:"cartographicDegrees,omitempty"`
	InterpolationAlgorithm string    `json:"interpolationAlgorithm,omitempty"`
	InterpolationDegree    int       `json:"interpolationDegree,omitempty"`
}

// Point is the billboard marker style for an object packet.
type Point struct {
	PixelSize float64 `json:"pixelSize,omitempty"`
}

// DocumentID is the identifier of the global metadata packet.
const DocumentID = "document"

// IsGlobal reports whether the packet carries document/clock metadata
// rather than describing a tracked object. Global packets are never
// filtered out of the visible set.
func (p Packet) IsGlobal() bool {
	return p.ID == DocumentID || p.Clock != nil
}

// catalogSuffix matches a parenthesized integer suffix of a packet id,
// e.g. "STARLINK-1234 (44714)".
var catalogSuffix = regexp.MustCompile(`\((\d+)\)\s*$`)

// CatalogNumber extracts the catalog number embedded in the packet
// identifier. Returns false when the identifier has no parenthesized
// integer suffix; such packets are excluded from the visible set unless
// they are global.
func (p Packet) CatalogNumber() (int, bool) {
	m := catalogSuffix.FindStringSubmatch(p.ID)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// CanonicalID renders a catalog identifier in its canonical string form.
// Catalog numbers cross a JSON boundary where one side holds them as
// numbers and the other as strings; every comparison of two catalog
// identifiers goes through this function.
func CanonicalID(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return strconv.Itoa(i)
		}
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Parse reads a CZML document (JSON array of packets) from r.
func Parse(r io.Reader) ([]Packet, error) {
	var packets []Packet
	if err := json.NewDecoder(r).Decode(&packets); err != nil {
		return nil, fmt.Errorf("decoding trajectory feed: %w", err)
	}
	return packets, nil
}

// iso renders a time in the compact UTC form used throughout CZML.
func iso(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Interval renders a CZML availability/clock interval.
func Interval(start, stop time.Time) string {
	return iso(start) + "/" + iso(stop)
}

// ParseInterval splits a CZML interval into its bounds.
func ParseInterval(interval string) (start, stop time.Time, err error) {
	a, b, ok := strings.Cut(interval, "/")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("interval %q missing separator", interval)
	}
	start, err = time.Parse(time.RFC3339, a)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("interval start: %w", err)
	}
	stop, err = time.Parse(time.RFC3339, b)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("interval stop: %w", err)
	}
	return start, stop, nil
}

// Document builds the global metadata packet for an animation window.
func Document(name string, start, stop time.Time, multiplier float64) Packet {
	return Packet{
		ID:      DocumentID,
		Name:    name,
		Version: "1.0",
		Clock: &Clock{
			Interval:    Interval(start, stop),
			CurrentTime: iso(start),
			Multiplier:  multiplier,
			Range:       "LOOP_STOP",
			Step:        "SYSTEM_CLOCK_MULTIPLIER",
		},
	}
}

// ObjectID renders the packet identifier for a named object with the
// given catalog number, in the form CatalogNumber can extract.
func ObjectID(name string, catalogNumber int) string {
	return fmt.Sprintf("%s (%d)", name, catalogNumber)
}
