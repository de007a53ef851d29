package layers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-flood/internal/mapview"
	"github.com/joeblew999/plat-flood/internal/service"
)

func TestLoadAllScenario(t *testing.T) {
	srv, _ := datasetServer(t, "/geojson/zonas-inundables.geojson")
	c, m := newTestCoordinator(srv.URL)

	result := c.LoadAll(context.Background(), m, defaultSpecs())

	require.Len(t, result.Entries, 3)
	assert.Equal(t, "comunidad-valenciana", result.Entries[0].ID)
	assert.Equal(t, StatusSuccess, result.Entries[0].Status)
	assert.Equal(t, "zonas-inundables", result.Entries[1].ID)
	assert.Equal(t, StatusFailure, result.Entries[1].Status)
	assert.NotEmpty(t, result.Entries[1].Failure.Reason)
	assert.Equal(t, "cauces-rios", result.Entries[2].ID)
	assert.Equal(t, StatusSuccess, result.Entries[2].Status)

	snap := m.Snapshot()
	require.Len(t, snap.Sources, 2)
	_, ok := m.Source("zonas-inundables")
	assert.False(t, ok)
	assert.Empty(t, m.LayersFor("zonas-inundables"))
	assert.Equal(t, "partial", result.Outcome())
	assert.Equal(t, StateDone, c.State())
	assert.NotEmpty(t, result.CycleID)
}

func TestLoadAllEveryFailureSubset(t *testing.T) {
	paths := []string{
		"/geojson/comunidad_valenciana.geojson",
		"/geojson/zonas-inundables.geojson",
		"/geojson/cauces-rios.geojson",
	}
	specs := defaultSpecs()

	for mask := 0; mask < 1<<len(paths); mask++ {
		var missing []string
		for i, p := range paths {
			if mask&(1<<i) != 0 {
				missing = append(missing, p)
			}
		}

		srv, _ := datasetServer(t, missing...)
		c, m := newTestCoordinator(srv.URL)
		result := c.LoadAll(context.Background(), m, specs)

		require.Len(t, result.Entries, len(specs), "mask %b", mask)
		for i, e := range result.Entries {
			assert.Equal(t, specs[i].ID, e.ID, "mask %b", mask)
			failed := mask&(1<<i) != 0
			assert.Equal(t, !failed, e.OK(), "mask %b entry %s", mask, e.ID)
		}
		assert.Len(t, m.Snapshot().Sources, len(specs)-len(missing), "mask %b", mask)
	}
}

func TestLoadAllFetchesConcurrently(t *testing.T) {
	var (
		mu      sync.Mutex
		arrived int
		all     = make(chan struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrived++
		if arrived == 3 {
			close(all)
		}
		mu.Unlock()

		select {
		case <-all:
			w.Write([]byte(zonesJSON))
		case <-time.After(2 * time.Second):
			http.Error(w, "sequential", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c, m := newTestCoordinator(srv.URL)
	result := c.LoadAll(context.Background(), m, defaultSpecs())
	assert.Len(t, result.Succeeded(), 3)
}

func TestLoadAllHangingFetchDoesNotBlockSiblings(t *testing.T) {
	srv, _ := datasetServer(t)
	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer hang.Close()

	adapter := mapview.NewMapLibre("")
	c := NewCoordinator(CoordinatorOptions{
		Fetcher:   NewHTTPFetcher(HTTPFetcherOptions{Base: srv.URL, Timeout: 100 * time.Millisecond}),
		Registrar: NewRegistrar(adapter, nil, nil),
	})
	m := mapview.New(mapview.Valencia, 8, "streets")

	specs := defaultSpecs()
	specs[1].Source = hang.URL + "/zonas.geojson"

	result := c.LoadAll(context.Background(), m, specs)
	assert.True(t, result.Entries[0].OK())
	assert.False(t, result.Entries[1].OK())
	assert.Equal(t, KindNetwork, result.Entries[1].Failure.Kind)
	assert.True(t, result.Entries[2].OK())
}

func TestLoadAllReloadUpdatesInPlace(t *testing.T) {
	srv, _ := datasetServer(t)
	c, m := newTestCoordinator(srv.URL)
	specs := defaultSpecs()

	first := c.LoadAll(context.Background(), m, specs)
	layersBefore := m.Snapshot().Layers
	for _, e := range first.Entries {
		assert.True(t, e.Created)
	}

	second := c.LoadAll(context.Background(), m, specs)
	for _, e := range second.Entries {
		assert.True(t, e.OK())
		assert.False(t, e.Created)
	}
	assert.Equal(t, layersBefore, m.Snapshot().Layers)
}

func TestLoadAllBoundsUnion(t *testing.T) {
	srv, _ := datasetServer(t)
	c, m := newTestCoordinator(srv.URL)

	result := c.LoadAll(context.Background(), m, defaultSpecs())
	union, ok := result.Bounds()
	require.True(t, ok)

	for _, e := range result.Entries {
		require.NotNil(t, e.Bound, e.ID)
		assert.True(t, union.Contains(e.Bound.Min), e.ID)
		assert.True(t, union.Contains(e.Bound.Max), e.ID)
	}
}

func TestLoadAllNewCycleCancelsPrevious(t *testing.T) {
	started := make(chan struct{}, 1)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-r.Context().Done()
	}))
	defer slow.Close()
	srv, _ := datasetServer(t)

	c, m := newTestCoordinator(srv.URL)
	stuck := []service.LayerSpec{{ID: "slow", Source: slow.URL + "/slow.geojson", Style: service.Style{Geometry: service.GeomLine}}}

	firstDone := make(chan AggregateResult, 1)
	go func() {
		firstDone <- c.LoadAll(context.Background(), m, stuck)
	}()
	<-started

	second := c.LoadAll(context.Background(), m, defaultSpecs())
	first := <-firstDone

	require.Len(t, first.Entries, 1)
	assert.False(t, first.Entries[0].OK())
	assert.False(t, first.Finished.After(second.Started))
	assert.Len(t, second.Succeeded(), 3)
}

func TestLoadAllCancelsCycleWaitingForItsTurn(t *testing.T) {
	srv, _ := datasetServer(t)
	c, m := newTestCoordinator(srv.URL)
	begun := func(n uint64) func() bool {
		return func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.seq == n
		}
	}

	// Hold the cycle so the first LoadAll is queued before its fetches start.
	c.cycle.Lock()
	firstDone := make(chan AggregateResult, 1)
	go func() {
		firstDone <- c.LoadAll(context.Background(), m, defaultSpecs())
	}()
	require.Eventually(t, begun(1), time.Second, time.Millisecond)

	secondDone := make(chan AggregateResult, 1)
	go func() {
		secondDone <- c.LoadAll(context.Background(), m, defaultSpecs())
	}()
	require.Eventually(t, begun(2), time.Second, time.Millisecond)
	c.cycle.Unlock()

	first := <-firstDone
	second := <-secondDone
	require.Len(t, first.Entries, 3)
	for _, e := range first.Entries {
		assert.False(t, e.OK(), e.ID)
	}
	assert.Len(t, second.Succeeded(), 3)
}

func TestBeginSharesOneCycleAcrossLoads(t *testing.T) {
	srv, _ := datasetServer(t)
	c, m := newTestCoordinator(srv.URL)

	ctx, done := c.Begin(context.Background())
	defer done()
	assert.Len(t, c.LoadAll(ctx, m, defaultSpecs()).Succeeded(), 3)
	assert.NoError(t, ctx.Err(), "LoadAll keeps a cycle it was handed")
	assert.Len(t, c.LoadAll(ctx, m, defaultSpecs()).Succeeded(), 3)

	next, nextDone := c.Begin(context.Background())
	defer nextDone()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.NoError(t, next.Err())
}

type panicMap struct{ *mapview.Map }

func (p panicMap) AddLayer(mapview.Layer) error { panic("bad paint property") }

func TestLoadAllRenderingFailureIsContained(t *testing.T) {
	srv, _ := datasetServer(t)
	c, _ := newTestCoordinator(srv.URL)
	m := panicMap{mapview.New(mapview.Valencia, 8, "streets")}

	result := c.LoadAll(context.Background(), m, defaultSpecs())
	require.Len(t, result.Entries, 3)
	for _, e := range result.Entries {
		require.False(t, e.OK())
		assert.Equal(t, KindRendering, e.Failure.Kind)
	}
	assert.Equal(t, "empty", result.Outcome())
}
