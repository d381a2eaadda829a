// Package view coordinates the catalog, filter, playback clock, scene and
// telemetry resolver into one consistent view state, and fans state changes
// out to subscribers. All mutation funnels through the Orchestrator so the
// pieces can never disagree about what is showing.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/conwatch/conwatch/internal/catalog"
	"github.com/conwatch/conwatch/internal/czml"
	"github.com/conwatch/conwatch/internal/filter"
	"github.com/conwatch/conwatch/internal/metrics"
	"github.com/conwatch/conwatch/internal/playback"
	"github.com/conwatch/conwatch/internal/reconcile"
	"github.com/conwatch/conwatch/internal/scene"
	"github.com/conwatch/conwatch/internal/telemetry"
)

// NoSelection marks the selection index when nothing is selected.
const NoSelection = -1

// CatalogSource supplies conjunction records.
type CatalogSource interface {
	Fetch(ctx context.Context) ([]catalog.Conjunction, error)
}

// PacketSource supplies trajectory packets.
type PacketSource interface {
	Packets(ctx context.Context) ([]czml.Packet, error)
}

// Event is one push to subscribers.
type Event struct {
	Type   string           `json:"type"` // "state" or "camera"
	State  *State           `json:"state,omitempty"`
	Camera *telemetry.FlyTo `json:"camera,omitempty"`
}

// State is the externally visible view state.
type State struct {
	Criteria       filter.Criteria       `json:"criteria"`
	Conjunctions   []catalog.Conjunction `json:"conjunctions"`
	TotalCount     int                   `json:"total_count"`
	FilteredCount  int                   `json:"filtered_count"`
	SelectedIndex  int                   `json:"selected_index"`
	Clock          playback.State        `json:"clock"`
	SceneEntities  int                   `json:"scene_entities"`
	RefreshTrigger uint64                `json:"refresh_trigger"`
	CatalogAgeSec  float64               `json:"catalog_age_seconds"`
}

// Options configures an Orchestrator. Picker and Camera are optional: a
// nil Picker disables hit-testing and a nil Camera publishes camera moves
// as subscriber events instead.
type Options struct {
	Logger        *slog.Logger
	Catalog       CatalogSource
	Packets       PacketSource
	Store         *catalog.Store
	Picker        telemetry.Picker
	Camera        telemetry.CameraFunc
	AnimationTick time.Duration

	// SceneAccessToken authenticates the render surface against its
	// terrain/imagery provider. Installed once at construction.
	SceneAccessToken string
}

// Orchestrator owns the view state.
type Orchestrator struct {
	logger   *slog.Logger
	catalog  CatalogSource
	packets  PacketSource
	store    *catalog.Store
	surface  *scene.Surface
	clock    *playback.Clock
	resolver *telemetry.Resolver

	// trigger is the monotone load generation. Every state change that
	// requires a scene reload bumps it; the scene only accepts the
	// newest generation.
	trigger atomic.Uint64

	mu          sync.Mutex
	criteria    filter.Criteria
	filtered    []catalog.Conjunction
	rawPackets  []czml.Packet
	selection   int
	subscribers map[chan Event]struct{}

	tick   time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator wires the view. The playback clock starts empty; the
// first load establishes its window.
func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		logger:      opts.Logger,
		catalog:     opts.Catalog,
		packets:     opts.Packets,
		store:       opts.Store,
		surface:     scene.NewSurface(opts.Logger),
		clock:       playback.NewClock(),
		criteria:    filter.DefaultCriteria(),
		selection:   NoSelection,
		subscribers: make(map[chan Event]struct{}),
		tick:        opts.AnimationTick,
	}
	if o.store == nil {
		o.store = catalog.NewStore()
	}
	if o.tick <= 0 {
		o.tick = time.Second
	}
	if opts.SceneAccessToken != "" {
		if err := o.surface.Config().SetAccessToken(opts.SceneAccessToken); err != nil {
			opts.Logger.Warn("scene access token rejected", "error", err)
		}
	}

	camera := opts.Camera
	if camera == nil {
		camera = func(f telemetry.FlyTo) {
			o.broadcast(Event{Type: "camera", Camera: &f})
		}
	}
	o.resolver = telemetry.NewResolver(opts.Logger, opts.Picker, camera)
	return o
}

// Start launches the animation loop and performs the initial catalog
// load. A failed initial load is returned but leaves the loop running;
// a later RefreshCatalog can still bring the view up.
func (o *Orchestrator) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	go o.animate(loopCtx)

	return o.RefreshCatalog(ctx)
}

// Close stops the animation loop, releases the scene and disconnects
// subscribers.
func (o *Orchestrator) Close() {
	if o.cancel != nil {
		o.cancel()
		<-o.done
	}
	o.surface.Release()
	o.mu.Lock()
	for ch := range o.subscribers {
		close(ch)
		delete(o.subscribers, ch)
	}
	o.mu.Unlock()
}

// animate advances the clock on wall time and pushes state while playing.
func (o *Orchestrator) animate(ctx context.Context) {
	defer close(o.done)
	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if o.clock.Running() {
				o.clock.Advance(elapsed)
				o.broadcast(Event{Type: "state", State: o.snapshot()})
			}
		}
	}
}

// RefreshCatalog fetches the conjunction feed and the trajectory packets,
// replaces the stored snapshot and reloads the scene. Filter criteria and
// playback rate survive a refresh; the selection does not.
func (o *Orchestrator) RefreshCatalog(ctx context.Context) error {
	ctx, span := otel.Tracer("conwatch/view").Start(ctx, "catalog.refresh")
	defer span.End()

	conjunctions, err := o.catalog.Fetch(ctx)
	if err != nil {
		metrics.CatalogFetchesTotal.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("fetching conjunction feed: %w", err)
	}
	packets, err := o.packets.Packets(ctx)
	if err != nil {
		metrics.CatalogFetchesTotal.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("fetching trajectory feed: %w", err)
	}
	span.SetAttributes(
		attribute.Int("conjunctions", len(conjunctions)),
		attribute.Int("packets", len(packets)),
	)
	metrics.CatalogFetchesTotal.WithLabelValues("success").Inc()

	o.store.Set(&catalog.Snapshot{
		Source:       "feed",
		FetchedAt:    time.Now(),
		Conjunctions: conjunctions,
	})

	o.mu.Lock()
	o.rawPackets = packets
	o.filtered = filter.Apply(o.criteria, conjunctions)
	o.selection = NoSelection
	filtered := o.filtered
	o.mu.Unlock()

	o.logger.Info("catalog refreshed",
		"conjunctions", len(conjunctions),
		"packets", len(packets),
		"filtered", len(filtered))

	return o.reload(ctx, packets, filtered)
}

// SetFilter replaces the filter criteria, recomputes the visible set and
// reloads the scene. The reload runs asynchronously; a concurrent newer
// SetFilter wins regardless of which reload finishes first.
func (o *Orchestrator) SetFilter(ctx context.Context, criteria filter.Criteria) {
	o.mu.Lock()
	o.criteria = criteria
	o.filtered = filter.Apply(criteria, o.store.Conjunctions())
	o.selection = NoSelection
	packets := o.rawPackets
	filtered := o.filtered
	o.mu.Unlock()

	o.logger.Info("filter updated", "criteria", criteria.String(), "filtered", len(filtered))

	// The reload outlives the caller. An HTTP request context is canceled
	// the moment its handler returns, but the decision to reload was made
	// above; only a newer generation may displace this load.
	gen := o.trigger.Add(1)
	loadCtx := context.WithoutCancel(ctx)
	go func() {
		if err := o.load(loadCtx, gen, packets, filtered); err != nil && !errors.Is(err, scene.ErrStale) {
			o.logger.Error("scene reload failed", "generation", gen, "error", err)
		}
	}()
}

// reload synchronously applies a new packet set under a fresh generation.
func (o *Orchestrator) reload(ctx context.Context, packets []czml.Packet, filtered []catalog.Conjunction) error {
	gen := o.trigger.Add(1)
	err := o.load(ctx, gen, packets, filtered)
	if errors.Is(err, scene.ErrStale) {
		return nil
	}
	return err
}

// load reduces the packets against the filtered set and attaches the
// result. Only the load whose generation survives the attach touches the
// playback clock.
func (o *Orchestrator) load(ctx context.Context, gen uint64, packets []czml.Packet, filtered []catalog.Conjunction) error {
	ctx, span := otel.Tracer("conwatch/view").Start(ctx, "scene.reload")
	defer span.End()
	span.SetAttributes(attribute.Int64("generation", int64(gen)))

	reduced := reconcile.Reduce(packets, filtered)

	ds, err := o.surface.Attach(ctx, gen, reduced)
	if err != nil {
		if errors.Is(err, scene.ErrStale) {
			metrics.SceneReloadsTotal.WithLabelValues("stale").Inc()
		} else {
			metrics.SceneReloadsTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	metrics.SceneReloadsTotal.WithLabelValues("applied").Inc()

	// Reload the clock only when the simulated window moved: a refresh
	// that returns the same trajectory document is not a discontinuity.
	if start, stop, ok := sceneWindow(ds); ok {
		cur := o.clock.State()
		if !cur.Start.Equal(start) || !cur.Stop.Equal(stop) {
			o.clock.Load(start, stop)
		}
	}
	o.broadcast(Event{Type: "state", State: o.snapshot()})
	return nil
}

// sceneWindow derives the playback window from the document clock, falling
// back to the union of entity availability.
func sceneWindow(ds *scene.DataSource) (start, stop time.Time, ok bool) {
	if ds.Clock != nil && ds.Clock.Interval != "" {
		s, e, err := czml.ParseInterval(ds.Clock.Interval)
		if err == nil {
			return s, e, true
		}
	}
	for _, e := range ds.Entities() {
		s, t := e.Window()
		if s.IsZero() {
			continue
		}
		if start.IsZero() || s.Before(start) {
			start = s
		}
		if t.After(stop) {
			stop = t
		}
	}
	return start, stop, !start.IsZero()
}

// Conjunctions returns the filtered conjunction list in catalog order.
func (o *Orchestrator) Conjunctions() []catalog.Conjunction {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filtered
}

// SelectIndex marks the i-th filtered conjunction selected and focuses
// the camera on one of its satellites, preferring the secondary object.
func (o *Orchestrator) SelectIndex(i int) (telemetry.FocusResult, error) {
	o.mu.Lock()
	if i < 0 || i >= len(o.filtered) {
		n := len(o.filtered)
		o.mu.Unlock()
		return telemetry.FocusResult{}, fmt.Errorf("selection index %d out of range [0,%d)", i, n)
	}
	o.selection = i
	conj := o.filtered[i]
	o.mu.Unlock()

	ds := o.surface.Current()
	now := o.clock.Current()

	res := o.resolver.FocusOn(ds, conj.Sat2.CatalogNumber, now)
	if !res.Found {
		res = o.resolver.FocusOn(ds, conj.Sat1.CatalogNumber, now)
	}
	metrics.TelemetryResolutionsTotal.WithLabelValues(focusOutcome(res)).Inc()
	o.broadcast(Event{Type: "state", State: o.snapshot()})
	return res, nil
}

// ClearSelection drops the selection without moving the camera.
func (o *Orchestrator) ClearSelection() {
	o.mu.Lock()
	o.selection = NoSelection
	o.mu.Unlock()
	o.broadcast(Event{Type: "state", State: o.snapshot()})
}

// FocusOn moves the camera onto the satellite with the given catalog
// identifier, independent of the selection.
func (o *Orchestrator) FocusOn(id any) telemetry.FocusResult {
	res := o.resolver.FocusOn(o.surface.Current(), id, o.clock.Current())
	metrics.TelemetryResolutionsTotal.WithLabelValues(focusOutcome(res)).Inc()
	return res
}

// ResolveScreenPoint hit-tests a screen point at the current simulated time.
func (o *Orchestrator) ResolveScreenPoint(x, y float64) (telemetry.Telemetry, bool) {
	tel, ok := o.resolver.ResolveAtScreenPoint(o.surface.Current(), o.clock.Current(), x, y)
	if ok {
		metrics.TelemetryResolutionsTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.TelemetryResolutionsTotal.WithLabelValues("miss").Inc()
	}
	return tel, ok
}

func focusOutcome(res telemetry.FocusResult) string {
	if res.Found {
		return "hit"
	}
	return "miss"
}

// Clock exposes the playback clock for control endpoints.
func (o *Orchestrator) Clock() *playback.Clock {
	return o.clock
}

// PublishState pushes the current state to subscribers. Playback control
// handlers call it after mutating the clock.
func (o *Orchestrator) PublishState() {
	o.broadcast(Event{Type: "state", State: o.snapshot()})
}

// Subscribe registers an event channel. The returned cancel function
// unregisters it; the channel is closed on Close.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	o.mu.Lock()
	o.subscribers[ch] = struct{}{}
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		if _, ok := o.subscribers[ch]; ok {
			delete(o.subscribers, ch)
			close(ch)
		}
		o.mu.Unlock()
	}
	return ch, cancel
}

// broadcast pushes an event to every subscriber, dropping it for
// subscribers whose buffer is full.
func (o *Orchestrator) broadcast(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := range o.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// State returns a snapshot of the view.
func (o *Orchestrator) State() State {
	return *o.snapshot()
}

func (o *Orchestrator) snapshot() *State {
	o.mu.Lock()
	criteria := o.criteria
	filtered := o.filtered
	selection := o.selection
	o.mu.Unlock()

	sceneEntities := 0
	if ds := o.surface.Current(); ds != nil {
		sceneEntities = ds.Len()
	}

	return &State{
		Criteria:       criteria,
		Conjunctions:   filtered,
		TotalCount:     len(o.store.Conjunctions()),
		FilteredCount:  len(filtered),
		SelectedIndex:  selection,
		Clock:          o.clock.State(),
		SceneEntities:  sceneEntities,
		RefreshTrigger: o.trigger.Load(),
		CatalogAgeSec:  o.store.AgeSeconds(),
	}
}
