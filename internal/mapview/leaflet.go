package mapview

import (
	"encoding/json"

	"github.com/joeblew999/plat-flood/internal/service"
)

// Leaflet renders for Leaflet's L.geoJSON overlays.
type Leaflet struct {
	key string
}

// NewLeaflet creates a Leaflet adapter.
func NewLeaflet(key string) *Leaflet {
	return &Leaflet{key: key}
}

func (a *Leaflet) Name() string { return "leaflet" }

func (a *Leaflet) DefaultZoom() float64 { return 10 }

func (a *Leaflet) Basemaps() []Basemap {
	return []Basemap{
		{Name: "osm", URL: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", Attribution: "© OpenStreetMap contributors"},
		{Name: "satellite", URL: withKey("https://api.maptiler.com/maps/satellite/{z}/{x}/{y}.jpg?key={key}", a.key), Attribution: "© MapTiler © OpenStreetMap contributors"},
		{Name: "bright", URL: withKey("https://api.maptiler.com/maps/bright-v2/{z}/{x}/{y}.png?key={key}", a.key), Attribution: "© MapTiler © OpenStreetMap contributors"},
	}
}

// Layers yields a single path-style layer; Leaflet draws fill and outline
// from one options object.
func (a *Leaflet) Layers(spec service.LayerSpec) []Layer {
	st := spec.Style
	paint := map[string]any{}
	setIf(paint, "color", st.Stroke)
	setIf(paint, "weight", st.StrokeWidth)
	setIf(paint, "opacity", st.StrokeOpacity)

	switch st.Geometry {
	case service.GeomLine:
		// L.Path fills polygons by default.
		paint["fill"] = false
	case service.GeomCircle:
		setIf(paint, "radius", st.Radius)
		setIf(paint, "fillColor", st.Fill)
		setIf(paint, "fillOpacity", st.FillOpacity)
	default:
		setIf(paint, "fillColor", st.Fill)
		setIf(paint, "fillOpacity", st.FillOpacity)
		if !st.HasStroke() {
			paint["stroke"] = false
		}
	}
	return []Layer{{ID: spec.ID, Type: st.Geometry, Source: spec.ID, Paint: paint}}
}

// LeafletOverlay is one L.geoJSON call.
type LeafletOverlay struct {
	ID          string          `json:"id"`
	Data        json.RawMessage `json:"data"`
	Kind        string          `json:"kind"`
	Style       map[string]any  `json:"style"`
	Interactive bool            `json:"interactive"`
}

// LeafletDocument uses Leaflet's [lat, lng] ordering throughout.
type LeafletDocument struct {
	Renderer  string           `json:"renderer"`
	Basemap   string           `json:"basemap"`
	TileLayer Basemap          `json:"tileLayer"`
	Center    [2]float64       `json:"center"`
	Zoom      float64          `json:"zoom"`
	Bounds    *[2][2]float64   `json:"bounds,omitempty"`
	MaxBounds *[2][2]float64   `json:"maxBounds,omitempty"`
	Overlays  []LeafletOverlay `json:"overlays"`
}

func (a *Leaflet) Document(snap Snapshot) any {
	doc := LeafletDocument{
		Renderer:  a.Name(),
		Basemap:   snap.Basemap,
		Center:    [2]float64{snap.Viewport.Center.Lat(), snap.Viewport.Center.Lon()},
		Zoom:      snap.Viewport.Zoom,
		Bounds:    latLngBounds(boundArray(snap.Viewport.Bounds)),
		MaxBounds: latLngBounds(boundArray(snap.MaxBounds)),
		Overlays:  []LeafletOverlay{},
	}
	if bm, ok := FindBasemap(a, snap.Basemap); ok {
		doc.TileLayer = bm
	}

	data := make(map[string]json.RawMessage, len(snap.Sources))
	for _, s := range snap.Sources {
		data[s.ID] = s.Data
	}
	interactive := map[string]bool{}
	for _, id := range InteractiveLayers(snap) {
		interactive[id] = true
	}
	for _, l := range snap.Layers {
		doc.Overlays = append(doc.Overlays, LeafletOverlay{
			ID:          l.ID,
			Data:        data[l.Source],
			Kind:        l.Type,
			Style:       l.Paint,
			Interactive: interactive[l.ID],
		})
	}
	return doc
}

func latLngBounds(b *[4]float64) *[2][2]float64 {
	if b == nil {
		return nil
	}
	return &[2][2]float64{{b[1], b[0]}, {b[3], b[2]}}
}

var _ Adapter = (*Leaflet)(nil)
