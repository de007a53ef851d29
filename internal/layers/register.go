package layers

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joeblew999/plat-flood/internal/mapview"
	"github.com/joeblew999/plat-flood/internal/service"
	"github.com/joeblew999/plat-flood/internal/templates"
)

// Cursor names returned by hover handlers.
const (
	CursorPointer = "pointer"
	CursorDefault = ""
)

// Registrar attaches datasets to a map. It is the only code path that
// mutates a map's layer set during loading.
type Registrar struct {
	adapter  mapview.Adapter
	renderer *templates.Renderer
	logger   *zap.Logger

	locks sync.Map // layer ID -> *sync.Mutex
}

// NewRegistrar creates a registrar producing layers in adapter's form.
func NewRegistrar(adapter mapview.Adapter, renderer *templates.Renderer, logger *zap.Logger) *Registrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registrar{adapter: adapter, renderer: renderer, logger: logger}
}

// Adapter returns the adapter layers are expressed for.
func (r *Registrar) Adapter() mapview.Adapter {
	return r.adapter
}

func (r *Registrar) lock(id string) func() {
	v, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Register attaches data under spec.ID. An existing source has its data
// replaced in place; otherwise the source is created. Either way, any of
// spec's layers missing from the map are added with their handlers, so a
// source left without layers by an earlier failure is completed. created
// reports whether the source was new. Panics from the map are returned as
// rendering failures.
func (r *Registrar) Register(m mapview.Handle, spec service.LayerSpec, data json.RawMessage) (created bool, err error) {
	unlock := r.lock(spec.ID)
	defer unlock()

	defer func() {
		if p := recover(); p != nil {
			created = false
			err = &Failure{Kind: KindRendering, Reason: fmt.Sprintf("%s: %v", spec.ID, p)}
		}
	}()

	if src, ok := m.Source(spec.ID); ok {
		src.SetData(data)
	} else {
		if err := m.AddSource(spec.ID, data); err != nil {
			return false, &Failure{Kind: KindRendering, Reason: err.Error()}
		}
		created = true
	}
	return created, r.ensureLayers(m, spec)
}

// ensureLayers adds the layers of spec that m lacks. Handlers are attached
// only to layers added here, so they never stack.
func (r *Registrar) ensureLayers(m mapview.Handle, spec service.LayerSpec) error {
	for _, layer := range r.adapter.Layers(spec) {
		if m.HasLayer(layer.ID) {
			continue
		}
		if err := m.AddLayer(layer); err != nil {
			return &Failure{Kind: KindRendering, Reason: err.Error()}
		}
		if spec.Popup != nil {
			r.attach(m, spec, layer.ID)
		}
	}
	return nil
}

func (r *Registrar) attach(m mapview.Handle, spec service.LayerSpec, layerID string) {
	popup := *spec.Popup
	m.On(mapview.EventClick, layerID, func(props map[string]any) string {
		if r.renderer == nil {
			return popup.Title
		}
		html, err := r.renderer.Popup(popup, props)
		if err != nil {
			r.logger.Warn("popup render failed", zap.String("layer", spec.ID), zap.Error(err))
			return popup.Title
		}
		return html
	})
	m.On(mapview.EventMouseEnter, layerID, func(map[string]any) string { return CursorPointer })
	m.On(mapview.EventMouseLeave, layerID, func(map[string]any) string { return CursorDefault })
}
