// Package playback drives the simulated-time clock behind the
// animation. The clock covers a bounded window of simulated time and
// advances by wall-clock elapsed time multiplied by a playback rate.
package playback

import (
	"fmt"
	"sync"
	"time"
)

// BoundaryMode controls what happens when simulated time reaches the
// end of the window.
type BoundaryMode int

const (
	// Clamp stops the clock at the window end.
	Clamp BoundaryMode = iota
	// Loop wraps simulated time back to the window start.
	Loop
)

func (m BoundaryMode) String() string {
	switch m {
	case Clamp:
		return "CLAMP"
	case Loop:
		return "LOOP"
	default:
		return fmt.Sprintf("BoundaryMode(%d)", int(m))
	}
}

// Rates is the playback rate cycle, in simulated seconds per wall
// second. CycleRate steps through it in order and wraps.
var Rates = []float64{1, 2, 10, 60}

// DefaultHorizon is the span of the simulated window when a load does
// not specify one.
const DefaultHorizon = 180 * time.Minute

// State is a point-in-time snapshot of the clock, safe to serialize.
type State struct {
	Start    time.Time    `json:"start"`
	Stop     time.Time    `json:"stop"`
	Current  time.Time    `json:"current"`
	Rate     float64      `json:"rate"`
	Running  bool         `json:"running"`
	Boundary BoundaryMode `json:"-"`
}

// Clock is a simulated-time clock over a bounded window. All methods
// are safe for concurrent use.
type Clock struct {
	mu       sync.Mutex
	start    time.Time
	stop     time.Time
	current  time.Time
	rateIdx  int
	running  bool
	boundary BoundaryMode
}

// NewClock creates a stopped clock with an empty window, rate 1 and
// Clamp boundary handling. Load establishes the window.
func NewClock() *Clock {
	return &Clock{}
}

// Load sets the simulated window, rewinds the clock to its start,
// resets the rate to the default and starts the clock. A zero stop
// derives the window end from DefaultHorizon. Loading while playing is
// the only discontinuity: the animation resumes from the new start.
func (c *Clock) Load(start, stop time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stop.IsZero() || !stop.After(start) {
		stop = start.Add(DefaultHorizon)
	}
	c.start = start
	c.stop = stop
	c.current = start
	c.rateIdx = 0
	c.running = true
}

// SetBoundary selects the window-end behavior.
func (c *Clock) SetBoundary(mode BoundaryMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundary = mode
}

// Play starts the clock. Playing an exhausted Clamp clock rewinds it.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.start.IsZero() {
		return
	}
	if c.boundary == Clamp && !c.current.Before(c.stop) {
		c.current = c.start
	}
	c.running = true
}

// Pause stops the clock in place.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

// Toggle flips between playing and paused and reports the new state.
func (c *Clock) Toggle() bool {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running {
		c.Pause()
		return false
	}
	c.Play()
	return true
}

// Scrub moves simulated time to t, clamped to the window. Scrubbing
// never changes the running state.
func (c *Clock) Scrub(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.start.IsZero() {
		return
	}
	if t.Before(c.start) {
		t = c.start
	}
	if t.After(c.stop) {
		t = c.stop
	}
	c.current = t
}

// Rate returns the current playback rate.
func (c *Clock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Rates[c.rateIdx]
}

// SetRate selects the given rate if it is in the cycle; unknown rates
// are ignored and the current rate is returned either way.
func (c *Clock) SetRate(rate float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range Rates {
		if r == rate {
			c.rateIdx = i
			break
		}
	}
	return Rates[c.rateIdx]
}

// CycleRate advances to the next rate in the cycle, wrapping at the
// end, and returns the new rate.
func (c *Clock) CycleRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateIdx = (c.rateIdx + 1) % len(Rates)
	return Rates[c.rateIdx]
}

// Advance moves simulated time forward by elapsed wall time scaled by
// the playback rate. A paused clock ignores Advance. Reaching the
// window end applies the boundary mode: Clamp pins current to stop and
// pauses; Loop wraps the overshoot back into the window.
func (c *Clock) Advance(wallElapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || wallElapsed <= 0 {
		return
	}

	step := time.Duration(float64(wallElapsed) * Rates[c.rateIdx])
	next := c.current.Add(step)
	if next.Before(c.stop) {
		c.current = next
		return
	}

	switch c.boundary {
	case Loop:
		window := c.stop.Sub(c.start)
		overshoot := next.Sub(c.start) % window
		c.current = c.start.Add(overshoot)
	default:
		c.current = c.stop
		c.running = false
	}
}

// State returns a snapshot of the clock.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Start:    c.start,
		Stop:     c.stop,
		Current:  c.current,
		Rate:     Rates[c.rateIdx],
		Running:  c.running,
		Boundary: c.boundary,
	}
}

// Current returns the simulated time.
func (c *Clock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Running reports whether the clock is advancing.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
