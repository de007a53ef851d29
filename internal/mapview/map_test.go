package mapview

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fc = json.RawMessage(`{"type":"FeatureCollection","features":[]}`)

func newMap() *Map {
	return New(Valencia, 8, "streets")
}

func TestAddSourceAndLayer(t *testing.T) {
	m := newMap()

	require.NoError(t, m.AddSource("a", fc))
	err := m.AddSource("a", fc)
	assert.ErrorIs(t, err, ErrSourceExists)

	require.NoError(t, m.AddLayer(Layer{ID: "a-fill", Type: "fill", Source: "a"}))
	assert.ErrorIs(t, m.AddLayer(Layer{ID: "a-fill", Type: "fill", Source: "a"}), ErrLayerExists)
	assert.Error(t, m.AddLayer(Layer{ID: "b-fill", Type: "fill", Source: "b"}))
	assert.Error(t, m.AddLayer(Layer{Type: "fill", Source: "a"}))

	assert.True(t, m.HasLayer("a-fill"))
	assert.Len(t, m.LayersFor("a"), 1)
}

func TestSetDataInPlace(t *testing.T) {
	m := newMap()
	require.NoError(t, m.AddSource("a", fc))

	src, ok := m.Source("a")
	require.True(t, ok)
	next := json.RawMessage(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":null}]}`)
	src.SetData(next)

	again, _ := m.Source("a")
	assert.JSONEq(t, string(next), string(again.Data()))
	assert.Len(t, m.Snapshot().Sources, 1)
}

func TestConcurrentSetDataLastWriterWins(t *testing.T) {
	m := newMap()
	require.NoError(t, m.AddSource("a", fc))
	src, _ := m.Source("a")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src.SetData(json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
		}(i)
	}
	wg.Wait()
	assert.True(t, json.Valid(src.Data()))
}

func TestFitBounds(t *testing.T) {
	m := newMap()
	before := m.Viewport()

	m.FitBounds(orb.Bound{})
	assert.Equal(t, before, m.Viewport(), "zero bound is ignored")

	b := orb.Bound{Min: orb.Point{-1, 38}, Max: orb.Point{0, 40}}
	m.FitBounds(b)
	vp := m.Viewport()
	require.NotNil(t, vp.Bounds)
	assert.Equal(t, b, *vp.Bounds)
	assert.Equal(t, orb.Point{-0.5, 39}, vp.Center)
	assert.Equal(t, before.Zoom, vp.Zoom)
}

func TestFlyTo(t *testing.T) {
	m := newMap()
	m.FitBounds(orb.Bound{Min: orb.Point{-1, 38}, Max: orb.Point{0, 40}})

	m.FlyTo(orb.Point{-0.37, 39.47}, 14)
	vp := m.Viewport()
	assert.Nil(t, vp.Bounds)
	assert.Equal(t, 14.0, vp.Zoom)
}

func TestDispatch(t *testing.T) {
	m := newMap()
	require.NoError(t, m.AddSource("a", fc))
	require.NoError(t, m.AddLayer(Layer{ID: "a-fill", Type: "fill", Source: "a"}))

	_, ok := m.Dispatch(EventClick, "a-fill", nil)
	assert.False(t, ok)

	m.On(EventClick, "a-fill", func(props map[string]any) string {
		return fmt.Sprint(props["nombre"])
	})
	out, ok := m.Dispatch(EventClick, "a-fill", map[string]any{"nombre": "Turia"})
	assert.True(t, ok)
	assert.Equal(t, "Turia", out)

	_, ok = m.Dispatch(EventClick, "a-fill", nil)
	assert.True(t, ok, "nil properties are allowed")
}

func TestSetBasemapClears(t *testing.T) {
	m := newMap()
	require.NoError(t, m.AddSource("a", fc))
	require.NoError(t, m.AddLayer(Layer{ID: "a-fill", Type: "fill", Source: "a"}))
	m.On(EventClick, "a-fill", func(map[string]any) string { return "" })
	m.FlyTo(orb.Point{0, 39}, 12)

	m.SetBasemap("satellite")

	snap := m.Snapshot()
	assert.Equal(t, "satellite", snap.Basemap)
	assert.Empty(t, snap.Sources)
	assert.Empty(t, snap.Layers)
	assert.Empty(t, snap.Handlers)
	assert.Equal(t, 12.0, snap.Viewport.Zoom)
}

func TestSnapshotIsCopy(t *testing.T) {
	m := newMap()
	require.NoError(t, m.AddSource("a", fc))
	m.SetMaxBounds(orb.Bound{Min: orb.Point{-1, 38}, Max: orb.Point{0, 40}})

	snap := m.Snapshot()
	snap.MaxBounds.Min[0] = 99
	assert.Equal(t, -1.0, m.Snapshot().MaxBounds.Min[0])
}
