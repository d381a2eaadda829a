package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// wireConjunction mirrors one record of the conjunction feed. TCA times
// arrive as ISO-8601 strings that may or may not carry a zone suffix
// (the pipeline emits naive UTC timestamps), so the field is decoded
// as a string and parsed explicitly.
type wireConjunction struct {
	AlertLevel          string    `json:"alert_level"`
	TCATime             string    `json:"tca_time"`
	DistanceKm          float64   `json:"distance_km"`
	RelativeVelocityKmS float64   `json:"relative_velocity_km_s"`
	Sat1                Satellite `json:"sat1"`
	Sat2                Satellite `json:"sat2"`
}

// tcaLayouts are tried in order when parsing feed timestamps.
var tcaLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTCATime parses a feed timestamp. Zone-less timestamps are UTC.
func ParseTCATime(s string) (time.Time, error) {
	for _, layout := range tcaLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable tca_time %q", s)
}

// Parse reads the conjunction feed (a JSON array of records) from r.
// Malformed records are skipped with a warning log; a document that is
// not a JSON array at all is a parse error.
func Parse(r io.Reader, logger *slog.Logger) ([]Conjunction, error) {
	var wire []wireConjunction
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding conjunction feed: %w", err)
	}

	conjunctions := make([]Conjunction, 0, len(wire))
	for i, w := range wire {
		level, err := ParseAlertLevel(w.AlertLevel)
		if err != nil {
			logger.Warn("skipping conjunction with unknown alert level",
				"record_index", i, "alert_level", w.AlertLevel)
			continue
		}

		tca, err := ParseTCATime(w.TCATime)
		if err != nil {
			logger.Warn("skipping conjunction with invalid TCA time",
				"record_index", i, "tca_time", w.TCATime, "error", err)
			continue
		}

		c := Conjunction{
			AlertLevel:          level,
			TCATime:             tca,
			DistanceKm:          w.DistanceKm,
			RelativeVelocityKmS: w.RelativeVelocityKmS,
			Sat1:                w.Sat1,
			Sat2:                w.Sat2,
		}
		if !c.Valid() {
			logger.Warn("skipping malformed conjunction record",
				"record_index", i,
				"distance_km", w.DistanceKm,
				"sat1_catalog", w.Sat1.CatalogNumber,
				"sat2_catalog", w.Sat2.CatalogNumber,
			)
			continue
		}
		conjunctions = append(conjunctions, c)
	}

	return conjunctions, nil
}
