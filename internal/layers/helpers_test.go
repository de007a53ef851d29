package layers

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/joeblew999/plat-flood/internal/mapview"
	"github.com/joeblew999/plat-flood/internal/service"
	"github.com/joeblew999/plat-flood/internal/templates"
)

const (
	boundaryJSON = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"name":"Comunitat Valenciana"},"geometry":{"type":"Polygon","coordinates":[[[-1.5,37.8],[0.7,37.8],[0.7,40.8],[-1.5,40.8],[-1.5,37.8]]]}}]}`
	zonesJSON    = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"nombre":"Zona 1","riesgo":"Alto"},"geometry":{"type":"Polygon","coordinates":[[[-0.35,39.48],[-0.30,39.48],[-0.30,39.52],[-0.35,39.52],[-0.35,39.48]]]}}]}`
	riversJSON   = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"nombre":"Río Turia","longitud":"280"},"geometry":{"type":"LineString","coordinates":[[-0.45,39.45],[-0.40,39.47],[-0.35,39.46],[-0.30,39.48]]}}]}`
)

// datasetServer serves the three datasets; paths listed in missing return 404.
func datasetServer(t *testing.T, missing ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	files := map[string]string{
		"/geojson/comunidad_valenciana.geojson": boundaryJSON,
		"/geojson/zonas-inundables.geojson":     zonesJSON,
		"/geojson/cauces-rios.geojson":          riversJSON,
	}
	for _, m := range missing {
		delete(files, m)
	}
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestCoordinator(base string) (*Coordinator, *mapview.Map) {
	adapter := mapview.NewMapLibre("")
	reg := NewRegistrar(adapter, templates.Must(), nil)
	c := NewCoordinator(CoordinatorOptions{
		Fetcher:   NewHTTPFetcher(HTTPFetcherOptions{Base: base}),
		Registrar: reg,
	})
	m := mapview.New(mapview.Valencia, adapter.DefaultZoom(), "streets")
	return c, m
}

func defaultSpecs() []service.LayerSpec {
	return service.DefaultLayers()
}
