// Package propagate turns two-line element sets into sampled trajectory
// packets. Each satellite is propagated with SGP4 over a time horizon and
// emitted as one CZML packet whose cartesian series holds inertial
// positions in meters.
package propagate

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/conwatch/conwatch/internal/czml"
	"github.com/conwatch/conwatch/internal/tle"
)

// Config holds trajectory generation settings.
type Config struct {
	Workers int           // worker pool size (default: runtime.NumCPU())
	Step    time.Duration // sample interval (default: 5m)
	Horizon time.Duration // trajectory span (default: 24h)
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Step <= 0 {
		c.Step = 5 * time.Minute
	}
	if c.Horizon <= 0 {
		c.Horizon = 24 * time.Hour
	}
	return c
}

// Generator produces trajectory documents from TLE entries.
type Generator struct {
	config Config
	logger *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(config Config, logger *slog.Logger) *Generator {
	return &Generator{config: config.withDefaults(), logger: logger}
}

// generateJob is a unit of work for the worker pool.
type generateJob struct {
	index int
	entry tle.ElementSet
}

// generateResult is one satellite's packet, or the failure that skipped it.
type generateResult struct {
	index         int
	packet        czml.Packet
	err           error
	catalogNumber int
}

// Generate propagates every entry over the horizon and returns a complete
// CZML document: a document packet followed by one packet per satellite in
// input order. Satellites that fail to propagate are skipped with a
// warning; an empty survivor set is an error.
func (g *Generator) Generate(ctx context.Context, entries []tle.ElementSet, start time.Time) ([]czml.Packet, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no TLE entries to propagate")
	}

	start = start.UTC().Truncate(time.Second)
	stop := start.Add(g.config.Horizon)

	g.logger.Info("generating trajectories",
		"satellites", len(entries),
		"start", start.Format(time.RFC3339),
		"horizon", g.config.Horizon,
		"step", g.config.Step,
		"workers", g.config.Workers,
	)

	jobs := make(chan generateJob, g.config.Workers*2)
	results := make(chan generateResult, g.config.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < g.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := g.generateSingle(job, start, stop)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, entry := range entries {
			select {
			case jobs <- generateJob{index: i, entry: entry}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect into input order.
	ordered := make([]*czml.Packet, len(entries))
	var errorCount int
	for result := range results {
		if result.err != nil {
			errorCount++
			g.logger.Warn("trajectory generation failed",
				"catalog_number", result.catalogNumber,
				"error", result.err,
			)
			continue
		}
		p := result.packet
		ordered[result.index] = &p
	}

	packets := make([]czml.Packet, 0, len(entries)+1)
	packets = append(packets, czml.Document("Satellite Trajectories", start, stop, 60))
	for _, p := range ordered {
		if p != nil {
			packets = append(packets, *p)
		}
	}

	if len(packets) == 1 {
		return nil, fmt.Errorf("all %d satellites failed to propagate", len(entries))
	}

	g.logger.Info("trajectories generated",
		"packets", len(packets)-1,
		"skipped", errorCount,
	)
	return packets, nil
}

// generateSingle propagates one satellite over [start, stop] and builds
// its packet.
func (g *Generator) generateSingle(job generateJob, start, stop time.Time) generateResult {
	entry := job.entry
	prop, err := NewSGP4Propagator(entry.Line1, entry.Line2, entry.CatalogNumber)
	if err != nil {
		return generateResult{index: job.index, catalogNumber: entry.CatalogNumber, err: err}
	}

	samples := int(stop.Sub(start)/g.config.Step) + 1
	cartesian := make([]float64, 0, samples*4)
	for i := 0; i < samples; i++ {
		offset := time.Duration(i) * g.config.Step
		t := start.Add(offset)
		eci, err := prop.Propagate(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
		if err != nil {
			return generateResult{index: job.index, catalogNumber: entry.CatalogNumber, err: err}
		}
		// km to meters.
		cartesian = append(cartesian,
			offset.Seconds(),
			eci.X*1000.0,
			eci.Y*1000.0,
			eci.Z*1000.0,
		)
	}

	return generateResult{
		index:         job.index,
		catalogNumber: entry.CatalogNumber,
		packet: czml.Packet{
			ID:           czml.ObjectID(entry.Name, entry.CatalogNumber),
			Name:         entry.Name,
			Availability: czml.Interval(start, stop),
			Position: &czml.Position{
				Epoch:                  start.Format(time.RFC3339),
				Cartesian:              cartesian,
				InterpolationAlgorithm: "LAGRANGE",
				InterpolationDegree:    1,
			},
			Point: &czml.Point{PixelSize: 10},
		},
	}
}
