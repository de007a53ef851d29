package mapview

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
)

// Registry errors.
var (
	ErrSourceExists = errors.New("source already exists")
	ErrLayerExists  = errors.New("layer already exists")
)

// Viewport is the visible area of the map.
type Viewport struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
	// Bounds is set when the viewport was fitted to data.
	Bounds *orb.Bound `json:"bounds,omitempty"`
}

type source struct {
	id   string
	mu   sync.Mutex
	data json.RawMessage
}

func (s *source) ID() string { return s.id }

func (s *source) Data() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// SetData replaces the whole payload; concurrent writers serialize and the
// last one wins.
func (s *source) SetData(data json.RawMessage) {
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}

type handlerKey struct {
	event   string
	layerID string
}

// HandlerRef names an attached handler in a snapshot.
type HandlerRef struct {
	Event   string `json:"event"`
	LayerID string `json:"layerId"`
}

// Map is an in-memory, concurrency-safe map instance implementing Handle.
type Map struct {
	mu        sync.RWMutex
	sources   map[string]*source
	order     []string
	layers    []Layer
	layerIdx  map[string]int
	handlers  map[handlerKey][]Handler
	handlerOr []handlerKey
	viewport  Viewport
	maxBounds *orb.Bound
	basemap   string
}

// New creates an empty map centred on center.
func New(center orb.Point, zoom float64, basemap string) *Map {
	m := &Map{
		viewport: Viewport{Center: center, Zoom: zoom},
		basemap:  basemap,
	}
	m.reset()
	return m
}

func (m *Map) reset() {
	m.sources = make(map[string]*source)
	m.order = nil
	m.layers = nil
	m.layerIdx = make(map[string]int)
	m.handlers = make(map[handlerKey][]Handler)
	m.handlerOr = nil
}

// AddSource registers a new dataset. It fails if the ID is taken.
func (m *Map) AddSource(id string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sources[id]; exists {
		return fmt.Errorf("%w: %q", ErrSourceExists, id)
	}
	m.sources[id] = &source{id: id, data: data}
	m.order = append(m.order, id)
	return nil
}

// Source returns the source registered under id.
func (m *Map) Source(id string) (Source, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sources[id]
	if !ok {
		return nil, false
	}
	return s, true
}

// AddLayer binds a layer to an existing source.
func (m *Map) AddLayer(layer Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if layer.ID == "" {
		return errors.New("layer id is required")
	}
	if _, exists := m.layerIdx[layer.ID]; exists {
		return fmt.Errorf("%w: %q", ErrLayerExists, layer.ID)
	}
	if _, ok := m.sources[layer.Source]; !ok {
		return fmt.Errorf("layer %q: source %q does not exist", layer.ID, layer.Source)
	}
	m.layerIdx[layer.ID] = len(m.layers)
	m.layers = append(m.layers, layer)
	return nil
}

// On attaches a handler for event on layerID.
func (m *Map) On(event, layerID string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := handlerKey{event: event, layerID: layerID}
	if _, ok := m.handlers[key]; !ok {
		m.handlerOr = append(m.handlerOr, key)
	}
	m.handlers[key] = append(m.handlers[key], h)
}

// FitBounds fits the viewport to b. Empty bounds are ignored.
func (m *Map) FitBounds(b orb.Bound) {
	if b.IsEmpty() || b.IsZero() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	fitted := b
	m.viewport.Bounds = &fitted
	m.viewport.Center = b.Center()
}

// FlyTo centres the viewport on p at zoom.
func (m *Map) FlyTo(p orb.Point, zoom float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.viewport = Viewport{Center: p, Zoom: zoom}
}

// SetMaxBounds constrains panning to b.
func (m *Map) SetMaxBounds(b orb.Bound) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb := b
	m.maxBounds = &mb
}

// Viewport returns the current viewport.
func (m *Map) Viewport() Viewport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vp := m.viewport
	if vp.Bounds != nil {
		b := *vp.Bounds
		vp.Bounds = &b
	}
	return vp
}

// Basemap returns the active basemap style name.
func (m *Map) Basemap() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.basemap
}

// SetBasemap switches the basemap style. Like a style change in the browser
// library, it clears every source, layer and handler; the viewport is kept.
func (m *Map) SetBasemap(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.basemap = name
	m.reset()
}

// Clear removes all sources, layers and handlers.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// LayersFor returns the layers bound to sourceID.
func (m *Map) LayersFor(sourceID string) []Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Layer
	for _, l := range m.layers {
		if l.Source == sourceID {
			out = append(out, l)
		}
	}
	return out
}

// HasLayer reports whether a layer with id exists.
func (m *Map) HasLayer(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.layerIdx[id]
	return ok
}

// Dispatch fires event on layerID for a feature with properties and returns
// the output of the last handler. ok is false when nothing is attached.
func (m *Map) Dispatch(event, layerID string, properties map[string]any) (string, bool) {
	m.mu.RLock()
	hs := append([]Handler(nil), m.handlers[handlerKey{event: event, layerID: layerID}]...)
	m.mu.RUnlock()

	if len(hs) == 0 {
		return "", false
	}
	if properties == nil {
		properties = map[string]any{}
	}
	var out string
	for _, h := range hs {
		out = h(properties)
	}
	return out, true
}

// SourceSnapshot is a source and its current payload.
type SourceSnapshot struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Snapshot is a consistent copy of the map state.
type Snapshot struct {
	Basemap   string           `json:"basemap"`
	Viewport  Viewport         `json:"viewport"`
	MaxBounds *orb.Bound       `json:"maxBounds,omitempty"`
	Sources   []SourceSnapshot `json:"sources"`
	Layers    []Layer          `json:"layers"`
	Handlers  []HandlerRef     `json:"handlers"`
}

// Snapshot copies the map state in registration order.
func (m *Map) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Basemap:  m.basemap,
		Viewport: m.viewport,
		Sources:  make([]SourceSnapshot, 0, len(m.order)),
		Layers:   append([]Layer(nil), m.layers...),
		Handlers: make([]HandlerRef, 0, len(m.handlerOr)),
	}
	if m.maxBounds != nil {
		mb := *m.maxBounds
		snap.MaxBounds = &mb
	}
	for _, id := range m.order {
		snap.Sources = append(snap.Sources, SourceSnapshot{ID: id, Data: m.sources[id].Data()})
	}
	for _, k := range m.handlerOr {
		snap.Handlers = append(snap.Handlers, HandlerRef{Event: k.event, LayerID: k.layerID})
	}
	return snap
}

var _ Handle = (*Map)(nil)
