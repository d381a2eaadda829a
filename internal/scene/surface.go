package scene

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/conwatch/conwatch/internal/czml"
)

// ErrStale is returned by Attach when a newer load has already landed.
var ErrStale = errors.New("scene: load superseded by a newer one")

// Surface holds the single data source currently attached to the globe.
// Loads are tagged with a monotone generation number; an attach whose
// generation is older than the one already showing is discarded, so a
// slow load can never overwrite the result of a later one.
type Surface struct {
	mu        sync.Mutex
	logger    *slog.Logger
	cfg       Config
	current   *DataSource
	loadedGen uint64
}

// NewSurface creates an empty surface.
func NewSurface(logger *slog.Logger) *Surface {
	return &Surface{logger: logger}
}

// Config returns the surface's render settings.
func (s *Surface) Config() *Config {
	return &s.cfg
}

// Attach builds a data source from the packets and installs it, replacing
// whatever was showing. gen is the load generation the packets belong to:
// if a load with a higher generation has already attached, the packets are
// discarded and ErrStale is returned.
func (s *Surface) Attach(ctx context.Context, gen uint64, packets []czml.Packet) (*DataSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := NewDataSource(packets)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen < s.loadedGen {
		s.logger.Info("discarding stale scene load",
			"generation", gen,
			"loaded_generation", s.loadedGen)
		return nil, ErrStale
	}

	s.current = ds
	s.loadedGen = gen
	s.logger.Info("scene attached",
		"generation", gen,
		"entities", ds.Len(),
		"source", ds.Name)
	return ds, nil
}

// Current returns the attached data source, or nil when the scene is empty.
func (s *Surface) Current() *DataSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Generation returns the generation of the attached data source.
func (s *Surface) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedGen
}

// Release detaches the current data source, leaving the scene empty. The
// generation watermark is kept so late loads from before the release are
// still recognized as stale.
func (s *Surface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.logger.Info("scene released", "generation", s.loadedGen)
	}
	s.current = nil
}
