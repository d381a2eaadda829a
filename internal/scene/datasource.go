// Package scene owns the render surface state: the entity set built from
// trajectory packets and the single attached data source. It is the Go-side
// model of what the globe is currently showing.
package scene

import (
	"fmt"
	"time"

	"github.com/conwatch/conwatch/internal/czml"
	"github.com/conwatch/conwatch/internal/transform"
)

// Entity is one renderable object with a sampled position series.
type Entity struct {
	ID            string
	Name          string
	CatalogNumber int
	HasCatalog    bool

	epoch   time.Time
	start   time.Time
	stop    time.Time
	samples []sample
}

// sample is one position sample, inertial km at an offset from the epoch.
type sample struct {
	offset  time.Duration
	x, y, z float64 // km
}

// DataSource is an ordered set of entities built from one packet list.
type DataSource struct {
	Name     string
	Clock    *czml.Clock
	entities []*Entity
	byID     map[string]*Entity
}

// NewDataSource builds a data source from a packet list. Entities appear
// in packet order. Object packets without a position series still become
// entities; they just resolve no position. The document packet contributes
// the clock and the source name.
func NewDataSource(packets []czml.Packet) (*DataSource, error) {
	ds := &DataSource{
		byID: make(map[string]*Entity, len(packets)),
	}

	for _, p := range packets {
		if p.IsGlobal() {
			if p.Clock != nil {
				ds.Clock = p.Clock
			}
			if p.ID == czml.DocumentID && p.Name != "" {
				ds.Name = p.Name
			}
			continue
		}

		e, err := newEntity(p)
		if err != nil {
			return nil, fmt.Errorf("packet %q: %w", p.ID, err)
		}
		ds.entities = append(ds.entities, e)
		ds.byID[e.ID] = e
	}
	return ds, nil
}

func newEntity(p czml.Packet) (*Entity, error) {
	e := &Entity{
		ID:   p.ID,
		Name: p.Name,
	}
	if e.Name == "" {
		e.Name = p.ID
	}
	if n, ok := p.CatalogNumber(); ok {
		e.CatalogNumber = n
		e.HasCatalog = true
	}

	if p.Availability != "" {
		start, stop, err := czml.ParseInterval(p.Availability)
		if err != nil {
			return nil, fmt.Errorf("availability: %w", err)
		}
		e.start, e.stop = start, stop
	}

	if p.Position == nil || len(p.Position.Cartesian) == 0 {
		return e, nil
	}
	if len(p.Position.Cartesian)%4 != 0 {
		return nil, fmt.Errorf("cartesian series length %d is not a multiple of 4", len(p.Position.Cartesian))
	}

	epoch := e.start
	if p.Position.Epoch != "" {
		t, err := time.Parse(time.RFC3339, p.Position.Epoch)
		if err != nil {
			return nil, fmt.Errorf("position epoch: %w", err)
		}
		epoch = t
	}
	e.epoch = epoch

	cart := p.Position.Cartesian
	e.samples = make([]sample, 0, len(cart)/4)
	var prev time.Duration
	for i := 0; i+3 < len(cart); i += 4 {
		off := time.Duration(cart[i] * float64(time.Second))
		if len(e.samples) > 0 && off <= prev {
			return nil, fmt.Errorf("cartesian sample offsets not strictly increasing at index %d", i/4)
		}
		// Samples arrive in meters; positions are held in km.
		e.samples = append(e.samples, sample{
			offset: off,
			x:      cart[i+1] / 1000.0,
			y:      cart[i+2] / 1000.0,
			z:      cart[i+3] / 1000.0,
		})
		prev = off
	}

	if e.start.IsZero() {
		e.start = epoch.Add(e.samples[0].offset)
		e.stop = epoch.Add(e.samples[len(e.samples)-1].offset)
	}
	return e, nil
}

// Entities returns the entities in registration order.
func (ds *DataSource) Entities() []*Entity {
	return ds.entities
}

// Lookup returns the entity with the given packet identifier.
func (ds *DataSource) Lookup(id string) (*Entity, bool) {
	e, ok := ds.byID[id]
	return e, ok
}

// Len returns the number of entities.
func (ds *DataSource) Len() int {
	return len(ds.entities)
}

// Available reports whether the entity has a position at time t.
func (e *Entity) Available(t time.Time) bool {
	if len(e.samples) == 0 {
		return false
	}
	return !t.Before(e.epoch.Add(e.samples[0].offset)) &&
		!t.After(e.epoch.Add(e.samples[len(e.samples)-1].offset))
}

// PositionAt returns the entity's inertial position (km) at time t using
// linear interpolation between the bracketing samples. Returns false when
// t is outside the sampled interval or the entity has no position series.
func (e *Entity) PositionAt(t time.Time) (transform.PositionECI, bool) {
	if !e.Available(t) {
		return transform.PositionECI{}, false
	}

	offset := t.Sub(e.epoch)
	lo, hi := 0, len(e.samples)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if e.samples[mid].offset < offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	// lo is the first sample at or after offset.
	if e.samples[lo].offset == offset || lo == 0 {
		s := e.samples[lo]
		return transform.PositionECI{X: s.x, Y: s.y, Z: s.z}, true
	}

	a, b := e.samples[lo-1], e.samples[lo]
	frac := float64(offset-a.offset) / float64(b.offset-a.offset)
	return transform.PositionECI{
		X: a.x + (b.x-a.x)*frac,
		Y: a.y + (b.y-a.y)*frac,
		Z: a.z + (b.z-a.z)*frac,
	}, true
}

// VelocityAt estimates the entity's inertial velocity (km/s) at time t by
// finite difference over the bracketing samples. Returns false when no
// bracketing pair exists.
func (e *Entity) VelocityAt(t time.Time) (vx, vy, vz float64, ok bool) {
	if len(e.samples) < 2 || !e.Available(t) {
		return 0, 0, 0, false
	}

	offset := t.Sub(e.epoch)
	lo, hi := 0, len(e.samples)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if e.samples[mid].offset < offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		lo = 1
	}
	a, b := e.samples[lo-1], e.samples[lo]
	dt := (b.offset - a.offset).Seconds()
	if dt <= 0 {
		return 0, 0, 0, false
	}
	return (b.x - a.x) / dt, (b.y - a.y) / dt, (b.z - a.z) / dt, true
}

// Window returns the entity's availability interval.
func (e *Entity) Window() (start, stop time.Time) {
	return e.start, e.stop
}
