package service

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the ordered, read-only set of layers configured at start-up.
type Catalog struct {
	specs []LayerSpec
	index map[string]int
}

// NewCatalog builds a catalog, rejecting empty or duplicate IDs.
func NewCatalog(specs []LayerSpec) (*Catalog, error) {
	c := &Catalog{
		specs: make([]LayerSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for i, spec := range specs {
		spec.ID = strings.TrimSpace(spec.ID)
		if spec.ID == "" {
			return nil, fmt.Errorf("layer %d: id is required", i)
		}
		if _, exists := c.index[spec.ID]; exists {
			return nil, fmt.Errorf("layer with ID %q already exists", spec.ID)
		}
		if spec.Source == "" {
			return nil, fmt.Errorf("layer %q: source is required", spec.ID)
		}
		if spec.Role == "" {
			spec.Role = RoleOverlay
		}
		if spec.Style.Geometry == "" {
			spec.Style.Geometry = GeomFill
		}
		if spec.Name == "" {
			spec.Name = spec.ID
		}
		c.index[spec.ID] = len(c.specs)
		c.specs = append(c.specs, spec)
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog file. An empty path yields the built-in
// Valencian datasets.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultLayers())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var file struct {
		Layers []LayerSpec `yaml:"layers"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if len(file.Layers) == 0 {
		return nil, fmt.Errorf("catalog %s defines no layers", path)
	}
	return NewCatalog(file.Layers)
}

// List returns the layers in configured order.
func (c *Catalog) List() []LayerSpec {
	out := make([]LayerSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

// Get returns a layer by ID.
func (c *Catalog) Get(id string) (LayerSpec, bool) {
	i, ok := c.index[id]
	if !ok {
		return LayerSpec{}, false
	}
	return c.specs[i], true
}

// IDs returns the layer IDs in configured order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.specs))
	for i, s := range c.specs {
		ids[i] = s.ID
	}
	return ids
}

// Len returns the number of configured layers.
func (c *Catalog) Len() int {
	return len(c.specs)
}

// DefaultLayers returns the boundary, flood-zone and river-channel datasets
// of the Comunitat Valenciana.
func DefaultLayers() []LayerSpec {
	return []LayerSpec{
		{
			ID:     "comunidad-valenciana",
			Name:   "Comunitat Valenciana",
			Role:   RoleBoundary,
			Source: "geojson/comunidad_valenciana.geojson",
			Style: Style{
				Geometry:      GeomLine,
				Stroke:        "#495057",
				StrokeWidth:   2,
				StrokeOpacity: 0.8,
			},
		},
		{
			ID:     "zonas-inundables",
			Name:   "Zonas inundables",
			Role:   RoleOverlay,
			Source: "geojson/zonas-inundables.geojson",
			Style: Style{
				Geometry:      GeomFill,
				Fill:          "#ff6b6b",
				FillOpacity:   0.3,
				Stroke:        "#dc3545",
				StrokeWidth:   1,
				StrokeOpacity: 0.7,
			},
			Popup: &PopupSpec{
				Title: "Zona Inundable",
				Fields: []PopupField{
					{Keys: []string{"nombre"}, Label: "Nombre"},
					{Keys: []string{"riesgo", "leyenda"}, Label: "Riesgo"},
				},
				Notice: "Evite esta zona durante lluvias intensas",
			},
			Legend: []LegendItem{{Label: "Zona inundable", Color: "#ff6b6b"}},
		},
		{
			ID:     "cauces-rios",
			Name:   "Cauces de ríos",
			Role:   RoleOverlay,
			Source: "geojson/cauces-rios.geojson",
			Style: Style{
				Geometry:      GeomFill,
				Fill:          "#4ecdc4",
				FillOpacity:   0.2,
				Stroke:        "#17a2b8",
				StrokeWidth:   2,
				StrokeOpacity: 0.7,
			},
			Popup: &PopupSpec{
				Title: "Cauce de Río",
				Fields: []PopupField{
					{Keys: []string{"nombre", "NOMBRE"}, Label: "Nombre", Fallback: "Sin nombre"},
					{Keys: []string{"longitud"}, Label: "Longitud", Suffix: "km"},
				},
				Notice: "No cruce con corriente de agua",
			},
			Legend: []LegendItem{{Label: "Cauce", Color: "#17a2b8"}},
		},
	}
}
