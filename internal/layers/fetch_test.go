package layers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherSuccess(t *testing.T) {
	srv, _ := datasetServer(t)
	f := NewHTTPFetcher(HTTPFetcherOptions{Base: srv.URL})

	out := f.Fetch(context.Background(), "geojson/zonas-inundables.geojson")
	require.True(t, out.OK())
	assert.JSONEq(t, zonesJSON, string(out.Data))

	out = f.Fetch(context.Background(), srv.URL+"/geojson/cauces-rios.geojson")
	require.True(t, out.OK())
}

func TestHTTPFetcherNotFound(t *testing.T) {
	srv, _ := datasetServer(t, "/geojson/zonas-inundables.geojson")
	f := NewHTTPFetcher(HTTPFetcherOptions{Base: srv.URL + "/"})

	out := f.Fetch(context.Background(), "geojson/zonas-inundables.geojson")
	require.False(t, out.OK())
	assert.Nil(t, out.Data)
	assert.Equal(t, KindNetwork, out.Failure.Kind)
	assert.Contains(t, out.Failure.Reason, "404")
}

func TestHTTPFetcherParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"FeatureCollection",`))
	}))
	defer srv.Close()

	out := NewHTTPFetcher(HTTPFetcherOptions{}).Fetch(context.Background(), srv.URL)
	require.False(t, out.OK())
	assert.Equal(t, KindParse, out.Failure.Kind)
}

func TestHTTPFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewHTTPFetcher(HTTPFetcherOptions{Timeout: 50 * time.Millisecond})
	start := time.Now()
	out := f.Fetch(context.Background(), srv.URL)
	require.False(t, out.OK())
	assert.Equal(t, KindNetwork, out.Failure.Kind)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHTTPFetcherBodyLimit(t *testing.T) {
	srv, _ := datasetServer(t)
	f := NewHTTPFetcher(HTTPFetcherOptions{Base: srv.URL, MaxBytes: 10})

	out := f.Fetch(context.Background(), "geojson/zonas-inundables.geojson")
	require.False(t, out.OK())
	assert.Equal(t, KindNetwork, out.Failure.Kind)
}

func TestHTTPFetcherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "geojson"), 0755))
	path := filepath.Join(dir, "geojson", "cauces-rios.geojson")
	require.NoError(t, os.WriteFile(path, []byte(riversJSON), 0644))

	f := NewHTTPFetcher(HTTPFetcherOptions{Base: dir})

	out := f.Fetch(context.Background(), "geojson/cauces-rios.geojson")
	require.True(t, out.OK())

	out = f.Fetch(context.Background(), "file://"+filepath.ToSlash(path))
	require.True(t, out.OK())

	out = f.Fetch(context.Background(), "geojson/missing.geojson")
	require.False(t, out.OK())
	assert.Equal(t, KindNetwork, out.Failure.Kind)
}

func TestHTTPFetcherUnsupportedScheme(t *testing.T) {
	out := NewHTTPFetcher(HTTPFetcherOptions{}).Fetch(context.Background(), "ftp://example.org/a.geojson")
	require.False(t, out.OK())
	assert.Equal(t, KindNetwork, out.Failure.Kind)
}
