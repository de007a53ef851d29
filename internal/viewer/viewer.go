// Package viewer owns one map instance and everything that mutates it:
// dataset loading, viewport fitting, basemap switching, the user-location
// marker and popups.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joeblew999/plat-flood/internal/layers"
	"github.com/joeblew999/plat-flood/internal/mapview"
	"github.com/joeblew999/plat-flood/internal/sample"
	"github.com/joeblew999/plat-flood/internal/service"
	"github.com/joeblew999/plat-flood/internal/templates"
)

// ErrNoPopup is returned for clicks on layers without a popup.
var ErrNoPopup = errors.New("layer has no popup")

// Recorder stores load-cycle results.
type Recorder interface {
	Record(ctx context.Context, basemap string, result layers.AggregateResult) error
}

// Options configures a Viewer.
type Options struct {
	Catalog  *service.Catalog
	Adapter  mapview.Adapter
	Fetcher  layers.Fetcher
	Renderer *templates.Renderer
	Bus      *service.EventBus
	Recorder Recorder
	// Basemap is the initial base style; empty selects the adapter default.
	Basemap string
	// SampleFallback registers embedded demo data for datasets that fail.
	// Off by default.
	SampleFallback bool
	Concurrency    int
	Logger         *zap.Logger
}

// Viewer is the application controller for one map.
type Viewer struct {
	catalog        *service.Catalog
	adapter        mapview.Adapter
	renderer       *templates.Renderer
	bus            *service.EventBus
	recorder       Recorder
	sampleFallback bool
	logger         *zap.Logger

	m     *mapview.Map
	coord *layers.Coordinator

	ops sync.Mutex // serializes Load, ChangeStyle and Locate

	mu       sync.RWMutex
	last     *Report
	position *Position
}

// Report is the outcome of one Load.
type Report struct {
	Result   layers.AggregateResult `json:"result"`
	Basemap  string                 `json:"basemap"`
	Viewport mapview.Viewport       `json:"viewport"`
	Fitted   bool                   `json:"fitted"`
	Warning  string                 `json:"warning,omitempty"`
}

// New creates a viewer. Catalog, Adapter and Fetcher are required.
func New(opts Options) (*Viewer, error) {
	if opts.Catalog == nil || opts.Adapter == nil || opts.Fetcher == nil {
		return nil, errors.New("viewer: catalog, adapter and fetcher are required")
	}
	basemap := opts.Basemap
	if basemap == "" {
		basemap = opts.Adapter.Basemaps()[0].Name
	}
	if _, ok := mapview.FindBasemap(opts.Adapter, basemap); !ok {
		return nil, fmt.Errorf("viewer: %s has no basemap %q", opts.Adapter.Name(), basemap)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Bus == nil {
		opts.Bus = service.NewEventBus()
	}

	v := &Viewer{
		catalog:        opts.Catalog,
		adapter:        opts.Adapter,
		renderer:       opts.Renderer,
		bus:            opts.Bus,
		recorder:       opts.Recorder,
		sampleFallback: opts.SampleFallback,
		logger:         opts.Logger.Named("viewer"),
		m:              mapview.New(mapview.Valencia, opts.Adapter.DefaultZoom(), basemap),
	}
	v.coord = layers.NewCoordinator(layers.CoordinatorOptions{
		Fetcher:     opts.Fetcher,
		Registrar:   layers.NewRegistrar(opts.Adapter, opts.Renderer, opts.Logger.Named("registrar")),
		Concurrency: opts.Concurrency,
		Logger:      opts.Logger.Named("loader"),
		OnEntry:     v.entrySettled,
	})
	return v, nil
}

// Map returns the underlying map.
func (v *Viewer) Map() *mapview.Map { return v.m }

// Adapter returns the rendering adapter selected at start-up.
func (v *Viewer) Adapter() mapview.Adapter { return v.adapter }

// Catalog returns the configured layers.
func (v *Viewer) Catalog() *service.Catalog { return v.catalog }

// Bus returns the event bus notices are published on.
func (v *Viewer) Bus() *service.EventBus { return v.bus }

// State returns the phase of the current load cycle.
func (v *Viewer) State() layers.State { return v.coord.State() }

// Document renders the map for the selected library.
func (v *Viewer) Document() any {
	return v.adapter.Document(v.m.Snapshot())
}

// LastReport returns the most recent load report.
func (v *Viewer) LastReport() (Report, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.last == nil {
		return Report{}, false
	}
	return *v.last, true
}

// Samples lists the catalog layers that fall back to sample data. It is
// empty while the fallback is off.
func (v *Viewer) Samples() []string {
	if !v.sampleFallback {
		return nil
	}
	var ids []string
	for _, id := range sample.IDs() {
		if _, ok := v.catalog.Get(id); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Cancel aborts any load cycle in flight or waiting to start.
func (v *Viewer) Cancel() { v.coord.Cancel() }

// Load runs one load cycle over every catalog layer. A cycle already in
// flight is cancelled first.
func (v *Viewer) Load(ctx context.Context) Report {
	ctx, done := v.coord.Begin(ctx)
	defer done()
	v.ops.Lock()
	defer v.ops.Unlock()
	return v.load(ctx)
}

func (v *Viewer) load(ctx context.Context) Report {
	specs := v.catalog.List()
	result := v.coord.LoadAll(ctx, v.m, specs)

	if v.sampleFallback {
		v.applySamples(specs, &result)
	}

	for _, e := range result.Succeeded() {
		spec, _ := v.catalog.Get(e.ID)
		if spec.Role == service.RoleBoundary && e.Bound != nil {
			v.m.SetMaxBounds(*e.Bound)
		}
	}

	report := Report{Result: result, Basemap: v.m.Basemap()}
	if bounds, ok := result.Bounds(); ok {
		v.m.FitBounds(bounds)
		report.Fitted = true
		v.bus.Publish(service.Event{Resource: "map", Action: "fitted", Level: service.LevelInfo,
			Message: fmt.Sprintf("%d capas cargadas", len(result.Succeeded()))})
	}
	if len(result.Succeeded()) == 0 {
		report.Warning = "No se pudieron cargar las capas GeoJSON"
		v.bus.Publish(service.Event{Resource: "map", Action: "empty", Level: service.LevelWarning, Message: report.Warning})
	}
	for _, e := range result.Entries {
		v.noticeFor(e)
	}
	report.Viewport = v.m.Viewport()

	if v.recorder != nil {
		if err := v.recorder.Record(ctx, report.Basemap, result); err != nil {
			v.logger.Warn("recording load cycle failed", zap.Error(err))
		}
	}

	v.mu.Lock()
	v.last = &report
	v.mu.Unlock()
	return report
}

// applySamples registers demo data for failed layers that have a sample and
// marks those entries.
func (v *Viewer) applySamples(specs []service.LayerSpec, result *layers.AggregateResult) {
	for i, e := range result.Entries {
		if e.OK() {
			continue
		}
		data, ok := sample.For(e.ID)
		if !ok {
			continue
		}
		entry := v.coord.Register(v.m, specs[i], data)
		if !entry.OK() {
			continue
		}
		entry.Sample = true
		entry.Failure = e.Failure
		entry.Duration = e.Duration
		result.Entries[i] = entry
		v.logger.Warn("using sample data", zap.String("layer", e.ID))
	}
}

func (v *Viewer) entrySettled(e layers.Entry) {
	if !e.OK() {
		return
	}
	action := "updated"
	if e.Created {
		action = "registered"
	}
	v.bus.Publish(service.Event{Resource: "layers", Action: action, ID: e.ID})
}

func (v *Viewer) noticeFor(e layers.Entry) {
	spec, _ := v.catalog.Get(e.ID)
	switch {
	case e.Sample:
		v.bus.Publish(service.Event{Resource: "layers", Action: "sample", ID: e.ID, Level: service.LevelWarning,
			Message: fmt.Sprintf("%s: datos reales no disponibles, mostrando datos de ejemplo", spec.Name)})
	case !e.OK():
		v.bus.Publish(service.Event{Resource: "layers", Action: "failed", ID: e.ID, Level: service.LevelWarning,
			Message: fmt.Sprintf("No se pudo cargar %s", spec.Name)})
	}
}

// ChangeStyle switches the basemap and reloads every layer, as the browser
// libraries drop all sources on a style change. An empty name cycles to the
// next basemap.
func (v *Viewer) ChangeStyle(ctx context.Context, name string) (Report, error) {
	if name == "" {
		name = mapview.NextBasemap(v.adapter, v.m.Basemap()).Name
	}
	if _, ok := mapview.FindBasemap(v.adapter, name); !ok {
		return Report{}, fmt.Errorf("unknown basemap %q", name)
	}

	ctx, done := v.coord.Begin(ctx)
	defer done()
	v.ops.Lock()
	defer v.ops.Unlock()

	v.m.SetBasemap(name)
	v.bus.Publish(service.Event{Resource: "map", Action: "style", ID: name})
	report := v.load(ctx)

	v.mu.RLock()
	pos := v.position
	v.mu.RUnlock()
	if pos != nil {
		if err := v.placeMarker(*pos); err != nil {
			v.logger.Warn("restoring location marker failed", zap.Error(err))
		}
	}
	return report, nil
}

// Popup fires a click on layerID for a feature with properties. layerID
// is a map layer ID or a catalog layer ID, in which case its interactive
// layers are tried in order.
func (v *Viewer) Popup(layerID string, properties map[string]any) (string, error) {
	if html, ok := v.m.Dispatch(mapview.EventClick, layerID, properties); ok {
		return html, nil
	}
	if spec, ok := v.catalog.Get(layerID); ok {
		for _, l := range v.adapter.Layers(spec) {
			if html, ok := v.m.Dispatch(mapview.EventClick, l.ID, properties); ok {
				return html, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNoPopup, layerID)
}
