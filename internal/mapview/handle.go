// Package mapview models the map widget server-side: sources, layers,
// handlers and viewport, rendered for MapLibre GL or Leaflet by an Adapter.
package mapview

import (
	"encoding/json"

	"github.com/paulmach/orb"
)

// Map events a handler can be attached to.
const (
	EventClick      = "click"
	EventMouseEnter = "mouseenter"
	EventMouseLeave = "mouseleave"
)

// Layer is a visual rendering rule bound to a source, already expressed in
// the adapter's paint vocabulary.
type Layer struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Paint  map[string]any `json:"paint,omitempty"`
}

// Handler reacts to a map event on a feature and returns the content to show
// (popup HTML for clicks, a cursor name for hover).
type Handler func(properties map[string]any) string

// Source is a registered dataset whose data can be swapped in place.
type Source interface {
	ID() string
	Data() json.RawMessage
	SetData(data json.RawMessage)
}

// Handle is the capability set the layer loader needs from a map library.
type Handle interface {
	AddSource(id string, data json.RawMessage) error
	Source(id string) (Source, bool)
	AddLayer(layer Layer) error
	HasLayer(id string) bool
	On(event, layerID string, h Handler)
	FitBounds(b orb.Bound)
}
