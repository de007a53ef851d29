package viewer

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-flood/internal/layers"
	"github.com/joeblew999/plat-flood/internal/mapview"
	"github.com/joeblew999/plat-flood/internal/service"
	"github.com/joeblew999/plat-flood/internal/templates"
	flood "github.com/joeblew999/plat-flood/internal/viewer"
)

const riversJSON = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"nombre":"Río Turia"},"geometry":{"type":"LineString","coordinates":[[-0.45,39.45],[-0.30,39.48]]}}]}`

func newTestAPI(t *testing.T) (humatest.TestAPI, *flood.Viewer) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "geojson"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geojson", "cauces-rios.geojson"), []byte(riversJSON), 0644))

	catalog, err := service.NewCatalog(service.DefaultLayers())
	require.NoError(t, err)
	renderer := templates.Must()
	v, err := flood.New(flood.Options{
		Catalog:  catalog,
		Adapter:  mapview.NewLeaflet(""),
		Fetcher:  layers.NewHTTPFetcher(layers.HTTPFetcherOptions{Base: dir}),
		Renderer: renderer,
	})
	require.NoError(t, err)

	_, api := humatest.New(t, huma.DefaultConfig("test", "1.0.0"))
	NewActionHandler(v, renderer).RegisterRoutes(api)
	NewEventHandler(v, renderer).RegisterRoutes(api)
	return api, v
}

func TestPopupPatchesElement(t *testing.T) {
	api, v := newTestAPI(t)
	v.Load(context.Background())

	resp := api.Post("/api/v1/viewer/popup", map[string]any{
		"layer": "cauces-rios",
		"props": map[string]any{"nombre": "Río Turia"},
	})
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, "#popup")
	assert.Contains(t, body, "Río Turia")
	assert.Contains(t, body, `"popupOpen":true`)
}

func TestPopupRequiresLayer(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Post("/api/v1/viewer/popup", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestStyleSignalsBasemap(t *testing.T) {
	api, v := newTestAPI(t)

	resp := api.Post("/api/v1/viewer/style", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"basemap":"satellite"`)
	assert.Equal(t, "satellite", v.Map().Basemap())

	resp = api.Post("/api/v1/viewer/style", map[string]any{"basemap": "streets"})
	assert.Contains(t, resp.Body.String(), `"error"`)
}

func TestLocate(t *testing.T) {
	api, v := newTestAPI(t)

	resp := api.Post("/api/v1/viewer/locate", map[string]any{"lat": 39.47, "lng": -0.37})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Estás aquí")
	pos, ok := v.Position()
	require.True(t, ok)
	assert.Equal(t, 39.47, pos.Lat)

	resp = api.Post("/api/v1/viewer/locate", map[string]any{"code": 3})
	assert.Contains(t, resp.Body.String(), "Tiempo de espera agotado")

	resp = api.Post("/api/v1/viewer/locate", map[string]any{"code": "permission-denied"})
	assert.Contains(t, resp.Body.String(), "Permiso denegado por el usuario")
}

func TestEventsStopOnDisconnect(t *testing.T) {
	api, v := newTestAPI(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		api.GetCtx(ctx, "/api/v1/viewer/events")
	}()
	v.Bus().Publish(service.Event{Resource: "map", Action: "fitted", Message: "ok"})
	cancel()
	<-done
}
