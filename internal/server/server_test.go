package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-flood/internal/layers"
)

const riversJSON = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"nombre":"Río Turia"},"geometry":{"type":"LineString","coordinates":[[-0.45,39.45],[-0.30,39.48]]}}]}`

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.DataDir, "geojson"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "geojson", "cauces-rios.geojson"), []byte(riversJSON), 0644))

	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServerRoutes(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"ok"`)

	resp, body = get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "plat-flood")
	assert.NotEmpty(t, resp.Header.Values("Link"))

	resp, body = get(t, ts.URL+"/viewer")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "/api/v1/viewer/events")

	resp, _ = get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerServesDatasets(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, body := get(t, ts.URL+"/geojson/cauces-rios.geojson")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	assert.True(t, json.Valid([]byte(body)))
}

func TestServerLoadsFromOwnDatasets(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	// Fetch through HTTP to exercise the same path a remote data host would.
	srv2, err := New(Config{DataURL: ts.URL, Renderer: "leaflet"})
	require.NoError(t, err)
	defer srv2.Close()

	report := srv2.Load(context.Background())
	require.Len(t, report.Result.Entries, 3)
	assert.Equal(t, layers.StatusSuccess, report.Result.Entries[2].Status)
	assert.Equal(t, layers.StatusFailure, report.Result.Entries[0].Status)
	assert.True(t, report.Fitted)

	local := srv.Load(context.Background())
	assert.Equal(t, local.Result.Outcome(), report.Result.Outcome())
}

func TestServerMetrics(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	srv.Load(context.Background())
	get(t, ts.URL+"/health")

	resp, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "platflood_layers_load_cycles_total")
	assert.Contains(t, body, "platflood_http_requests_total")
}

func TestServerHistory(t *testing.T) {
	srv, ts := newTestServer(t, Config{History: true})
	srv.Load(context.Background())

	resp, body := get(t, ts.URL+"/api/v1/loads")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"total":1`)
}

func TestServerOpenAPI(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	paths := srv.OpenAPI().Paths
	for _, p := range []string{"/health", "/api/v1/map", "/api/v1/viewer/events", "/api/v1/loads"} {
		assert.Contains(t, paths, p)
	}
}

func TestServerFragmentOverrides(t *testing.T) {
	web := t.TempDir()
	fragments := filepath.Join(web, "templates", "fragments")
	require.NoError(t, os.MkdirAll(fragments, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(fragments, "popup.html"),
		[]byte(`{{define "popup"}}<div class="mi-popup">{{.Title}}</div>{{end}}`), 0644))

	srv, _ := newTestServer(t, Config{WebDir: web})
	srv.Load(context.Background())

	html, err := srv.Viewer().Popup("cauces-rios-fill", map[string]any{"nombre": "Río Turia"})
	require.NoError(t, err)
	assert.Equal(t, `<div class="mi-popup">Cauce de Río</div>`, html)
}

func TestServerRejectsBrokenFragments(t *testing.T) {
	web := t.TempDir()
	fragments := filepath.Join(web, "templates", "fragments")
	require.NoError(t, os.MkdirAll(fragments, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(fragments, "popup.html"), []byte(`{{define "popup"}}`), 0644))

	_, err := New(Config{DataDir: t.TempDir(), WebDir: web})
	assert.Error(t, err)
}

func TestServerRejectsUnknownRenderer(t *testing.T) {
	_, err := New(Config{Renderer: "openlayers"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "openlayers"))
}
