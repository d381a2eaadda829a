// Package reconcile joins the filtered conjunction set against the
// trajectory packet list, producing the packets the render surface
// should show. The join key is the catalog number: a packet is visible
// when either satellite of any filtered conjunction carries its number.
package reconcile

import (
	"github.com/conwatch/conwatch/internal/catalog"
	"github.com/conwatch/conwatch/internal/czml"
)

// Reduce returns the packets visible under the filtered conjunction
// set, preserving packet order. Global packets (the document packet and
// anything carrying a clock) always survive.
//
// An empty filtered set returns the input unchanged: with nothing to
// reconcile against, reduction would blank the scene, so the full
// packet list stays visible instead.
func Reduce(packets []czml.Packet, filtered []catalog.Conjunction) []czml.Packet {
	if len(filtered) == 0 {
		return packets
	}

	visible := make(map[string]struct{}, len(filtered)*2)
	for _, conj := range filtered {
		visible[czml.CanonicalID(conj.Sat1.CatalogNumber)] = struct{}{}
		visible[czml.CanonicalID(conj.Sat2.CatalogNumber)] = struct{}{}
	}

	result := make([]czml.Packet, 0, len(packets))
	for _, p := range packets {
		if p.IsGlobal() {
			result = append(result, p)
			continue
		}
		n, ok := p.CatalogNumber()
		if !ok {
			continue
		}
		if _, ok := visible[czml.CanonicalID(n)]; ok {
			result = append(result, p)
		}
	}
	return result
}
