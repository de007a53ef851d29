package layers

import (
	"encoding/json"
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var errNoGeometry = errors.New("no geometry")

// BoundOf returns the bounding box of a GeoJSON FeatureCollection, Feature or
// Geometry. Features without geometry are skipped.
func BoundOf(data json.RawMessage) (orb.Bound, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return orb.Bound{}, err
	}

	var geoms []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return orb.Bound{}, err
		}
		for _, f := range fc.Features {
			if f.Geometry != nil {
				geoms = append(geoms, f.Geometry)
			}
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return orb.Bound{}, err
		}
		if f.Geometry != nil {
			geoms = append(geoms, f.Geometry)
		}
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return orb.Bound{}, err
		}
		if g.Geometry() != nil {
			geoms = append(geoms, g.Geometry())
		}
	}

	if len(geoms) == 0 {
		return orb.Bound{}, errNoGeometry
	}
	b := geoms[0].Bound()
	for _, g := range geoms[1:] {
		b = b.Union(g.Bound())
	}
	return b, nil
}
