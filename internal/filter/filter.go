// Package filter narrows the conjunction catalog by alert level and
// maximum approach distance. Application is pure: it never mutates the
// input slice and always preserves catalog order.
package filter

import (
	"fmt"
	"strings"

	"github.com/conwatch/conwatch/internal/catalog"
)

// Criteria selects which conjunctions are visible. The three Show flags
// gate alert levels independently; MaxDistanceKm bounds the approach
// distance inclusively, with zero or negative meaning no bound.
type Criteria struct {
	ShowHigh      bool    `json:"show_high"`
	ShowMedium    bool    `json:"show_medium"`
	ShowLow       bool    `json:"show_low"`
	MaxDistanceKm float64 `json:"max_distance_km"`
}

// DefaultCriteria shows everything with no distance bound.
func DefaultCriteria() Criteria {
	return Criteria{ShowHigh: true, ShowMedium: true, ShowLow: true}
}

// IsEmpty reports whether the criteria admit nothing regardless of
// distance. An all-off criteria set produces an empty result even with
// no distance bound.
func (c Criteria) IsEmpty() bool {
	return !c.ShowHigh && !c.ShowMedium && !c.ShowLow
}

// Matches reports whether a single conjunction passes the criteria.
func (c Criteria) Matches(conj catalog.Conjunction) bool {
	switch conj.AlertLevel {
	case catalog.AlertRed:
		if !c.ShowHigh {
			return false
		}
	case catalog.AlertYellow:
		if !c.ShowMedium {
			return false
		}
	case catalog.AlertGreen:
		if !c.ShowLow {
			return false
		}
	default:
		return false
	}
	if c.MaxDistanceKm > 0 && conj.DistanceKm > c.MaxDistanceKm {
		return false
	}
	return true
}

// Apply returns the conjunctions passing the criteria, in catalog
// order. The result is always a fresh slice; the input is not mutated.
func Apply(criteria Criteria, conjunctions []catalog.Conjunction) []catalog.Conjunction {
	result := make([]catalog.Conjunction, 0, len(conjunctions))
	for _, conj := range conjunctions {
		if criteria.Matches(conj) {
			result = append(result, conj)
		}
	}
	return result
}

// String renders the criteria for log lines.
func (c Criteria) String() string {
	var levels []string
	if c.ShowHigh {
		levels = append(levels, "RED")
	}
	if c.ShowMedium {
		levels = append(levels, "YELLOW")
	}
	if c.ShowLow {
		levels = append(levels, "GREEN")
	}
	if len(levels) == 0 {
		levels = append(levels, "none")
	}
	if c.MaxDistanceKm > 0 {
		return fmt.Sprintf("levels=%s max_distance_km=%.1f", strings.Join(levels, ","), c.MaxDistanceKm)
	}
	return fmt.Sprintf("levels=%s max_distance_km=unbounded", strings.Join(levels, ","))
}
