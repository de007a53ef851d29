// Package service contains the layer catalog and event plumbing for plat-flood.
package service

// Layer roles.
const (
	RoleBoundary = "boundary"
	RoleOverlay  = "overlay"
)

// Geometry kinds a style can render as.
const (
	GeomFill   = "fill"
	GeomLine   = "line"
	GeomCircle = "circle"
)

// LayerSpec describes one dataset overlaid on the map.
// Huma reads the tags for OpenAPI + validation; the YAML tags drive the
// catalog file.
type LayerSpec struct {
	ID     string       `json:"id" yaml:"id" required:"true" doc:"Unique, stable layer identifier" example:"zonas-inundables"`
	Name   string       `json:"name" yaml:"name" doc:"Display name" example:"Zonas inundables"`
	Role   string       `json:"role,omitempty" yaml:"role" enum:"boundary,overlay" default:"overlay" doc:"Boundary layers also constrain panning"`
	Source string       `json:"source" yaml:"source" required:"true" doc:"Dataset location (URL, file:// or path relative to the data base)" example:"geojson/zonas-inundables.geojson"`
	Style  Style        `json:"style" yaml:"style" doc:"Presentation style"`
	Popup  *PopupSpec   `json:"popup,omitempty" yaml:"popup,omitempty" doc:"Click popup; omitted for non-interactive layers"`
	Legend []LegendItem `json:"legend,omitempty" yaml:"legend,omitempty" doc:"Legend entries for this layer"`
}

// Style is the library-neutral presentation of a layer. Adapters translate it
// into paint descriptors.
type Style struct {
	Geometry      string  `json:"geometry" yaml:"geometry" enum:"fill,line,circle" default:"fill" doc:"Geometry kind"`
	Fill          string  `json:"fill,omitempty" yaml:"fill,omitempty" doc:"Fill color (CSS)" example:"#ff0000"`
	FillOpacity   float64 `json:"fillOpacity,omitempty" yaml:"fillOpacity,omitempty" minimum:"0" maximum:"1" doc:"Fill opacity (0-1)"`
	Stroke        string  `json:"stroke,omitempty" yaml:"stroke,omitempty" doc:"Stroke color (CSS)" example:"#dc3545"`
	StrokeWidth   float64 `json:"strokeWidth,omitempty" yaml:"strokeWidth,omitempty" minimum:"0" doc:"Stroke width in pixels"`
	StrokeOpacity float64 `json:"strokeOpacity,omitempty" yaml:"strokeOpacity,omitempty" minimum:"0" maximum:"1" doc:"Stroke opacity (0-1)"`
	Radius        float64 `json:"radius,omitempty" yaml:"radius,omitempty" minimum:"0" doc:"Circle radius in pixels"`
}

// HasStroke reports whether the style draws an outline.
func (s Style) HasStroke() bool {
	return s.Stroke != "" && s.StrokeWidth > 0
}

// PopupSpec configures the popup shown when a feature is clicked.
type PopupSpec struct {
	Title  string       `json:"title" yaml:"title" doc:"Popup heading" example:"Zona Inundable"`
	Fields []PopupField `json:"fields" yaml:"fields" doc:"Ordered property rows"`
	Notice string       `json:"notice,omitempty" yaml:"notice,omitempty" doc:"Footer hint" example:"Evite esta zona durante lluvias intensas"`
}

// PopupField maps feature properties to a labelled popup row. The first key
// present on the feature wins.
type PopupField struct {
	Keys   []string `json:"keys" yaml:"keys" minItems:"1" doc:"Property names, tried in order" example:"[\"riesgo\",\"leyenda\"]"`
	Label  string   `json:"label" yaml:"label" doc:"Row label" example:"Riesgo"`
	Suffix string   `json:"suffix,omitempty" yaml:"suffix,omitempty" doc:"Unit appended to the value" example:"km"`
	// Fallback replaces the default "No especificado" for this row.
	Fallback string `json:"fallback,omitempty" yaml:"fallback,omitempty" doc:"Shown when no key is present" example:"Sin nombre"`
}

// LegendItem defines a legend entry.
type LegendItem struct {
	Label string `json:"label" yaml:"label" doc:"Legend label"`
	Color string `json:"color" yaml:"color" doc:"Legend color (CSS)"`
}
