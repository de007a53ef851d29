package mapview

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-flood/internal/service"
)

// Adapter expresses layers and map state in one rendering library's form.
type Adapter interface {
	// Name is the library identifier used in configuration.
	Name() string
	// Layers translates a layer spec into the library's layer descriptors.
	// Every descriptor is bound to the source named spec.ID.
	Layers(spec service.LayerSpec) []Layer
	// Document renders a map snapshot for the browser.
	Document(snap Snapshot) any
	// Basemaps lists the available base styles; the first is the default.
	Basemaps() []Basemap
	// DefaultZoom is the initial zoom level of the library's page.
	DefaultZoom() float64
}

// Basemap is a named base style or tile layer.
type Basemap struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution,omitempty"`
}

// Valencia is the initial map centre.
var Valencia = orb.Point{-0.3763, 39.4699}

// Lookup returns the adapter for name. key is the MapTiler API key
// substituted into basemap URLs.
func Lookup(name, key string) (Adapter, error) {
	switch strings.ToLower(name) {
	case "", "maplibre", "maplibre-gl":
		return NewMapLibre(key), nil
	case "leaflet":
		return NewLeaflet(key), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q (want maplibre or leaflet)", name)
	}
}

// FindBasemap returns the basemap called name.
func FindBasemap(a Adapter, name string) (Basemap, bool) {
	for _, b := range a.Basemaps() {
		if b.Name == name {
			return b, true
		}
	}
	return Basemap{}, false
}

// NextBasemap returns the basemap after current, wrapping around.
func NextBasemap(a Adapter, current string) Basemap {
	bms := a.Basemaps()
	for i, b := range bms {
		if b.Name == current {
			return bms[(i+1)%len(bms)]
		}
	}
	return bms[0]
}

// InteractiveLayers returns the sorted layer IDs with a click handler.
func InteractiveLayers(snap Snapshot) []string {
	var ids []string
	for _, h := range snap.Handlers {
		if h.Event == EventClick {
			ids = append(ids, h.LayerID)
		}
	}
	sort.Strings(ids)
	return ids
}

func withKey(url, key string) string {
	return strings.ReplaceAll(url, "{key}", key)
}

func boundArray(b *orb.Bound) *[4]float64 {
	if b == nil {
		return nil
	}
	return &[4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
}

// setIf sets key when v is non-zero so the library default applies otherwise.
func setIf[T comparable](paint map[string]any, key string, v T) {
	var zero T
	if v != zero {
		paint[key] = v
	}
}
