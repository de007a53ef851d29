package mapview

import (
	"encoding/json"

	"github.com/joeblew999/plat-flood/internal/service"
)

// MapLibre renders for MapLibre GL JS.
type MapLibre struct {
	key string
}

// NewMapLibre creates a MapLibre adapter.
func NewMapLibre(key string) *MapLibre {
	return &MapLibre{key: key}
}

func (a *MapLibre) Name() string { return "maplibre" }

func (a *MapLibre) DefaultZoom() float64 { return 8 }

func (a *MapLibre) Basemaps() []Basemap {
	return []Basemap{
		{Name: "streets", URL: withKey("https://api.maptiler.com/maps/streets-v2/style.json?key={key}", a.key)},
		{Name: "satellite", URL: withKey("https://api.maptiler.com/maps/satellite/style.json?key={key}", a.key)},
	}
}

// Layers yields one layer per paint kind: fill styles with a stroke get a
// fill layer plus an outline line layer.
func (a *MapLibre) Layers(spec service.LayerSpec) []Layer {
	st := spec.Style
	switch st.Geometry {
	case service.GeomLine:
		return []Layer{a.line(spec)}
	case service.GeomCircle:
		paint := map[string]any{}
		setIf(paint, "circle-radius", st.Radius)
		setIf(paint, "circle-color", st.Fill)
		setIf(paint, "circle-opacity", st.FillOpacity)
		setIf(paint, "circle-stroke-color", st.Stroke)
		setIf(paint, "circle-stroke-width", st.StrokeWidth)
		return []Layer{{ID: spec.ID + "-circle", Type: "circle", Source: spec.ID, Paint: paint}}
	default:
		paint := map[string]any{}
		setIf(paint, "fill-color", st.Fill)
		setIf(paint, "fill-opacity", st.FillOpacity)
		layers := []Layer{{ID: spec.ID + "-fill", Type: "fill", Source: spec.ID, Paint: paint}}
		if st.HasStroke() {
			layers = append(layers, a.line(spec))
		}
		return layers
	}
}

func (a *MapLibre) line(spec service.LayerSpec) Layer {
	paint := map[string]any{}
	setIf(paint, "line-color", spec.Style.Stroke)
	setIf(paint, "line-width", spec.Style.StrokeWidth)
	setIf(paint, "line-opacity", spec.Style.StrokeOpacity)
	return Layer{ID: spec.ID + "-line", Type: "line", Source: spec.ID, Paint: paint}
}

// MapLibreSource is a GeoJSON source entry.
type MapLibreSource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MapLibreDocument is what the page applies after loading the base style:
// addSource for each entry, then addLayer in order.
type MapLibreDocument struct {
	Renderer    string                    `json:"renderer"`
	Basemap     string                    `json:"basemap"`
	Style       string                    `json:"style"`
	Center      [2]float64                `json:"center"`
	Zoom        float64                   `json:"zoom"`
	Bounds      *[4]float64               `json:"bounds,omitempty"`
	MaxBounds   *[4]float64               `json:"maxBounds,omitempty"`
	Sources     map[string]MapLibreSource `json:"sources"`
	Layers      []Layer                   `json:"layers"`
	Interactive []string                  `json:"interactive"`
}

func (a *MapLibre) Document(snap Snapshot) any {
	doc := MapLibreDocument{
		Renderer:    a.Name(),
		Basemap:     snap.Basemap,
		Center:      [2]float64{snap.Viewport.Center.Lon(), snap.Viewport.Center.Lat()},
		Zoom:        snap.Viewport.Zoom,
		Bounds:      boundArray(snap.Viewport.Bounds),
		MaxBounds:   boundArray(snap.MaxBounds),
		Sources:     make(map[string]MapLibreSource, len(snap.Sources)),
		Layers:      snap.Layers,
		Interactive: InteractiveLayers(snap),
	}
	if bm, ok := FindBasemap(a, snap.Basemap); ok {
		doc.Style = bm.URL
	}
	if doc.Layers == nil {
		doc.Layers = []Layer{}
	}
	for _, s := range snap.Sources {
		doc.Sources[s.ID] = MapLibreSource{Type: "geojson", Data: s.Data}
	}
	return doc
}

var _ Adapter = (*MapLibre)(nil)
