package viewer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-flood/internal/mapview"
	"github.com/joeblew999/plat-flood/internal/service"
)

// User-location marker identifiers.
const (
	LocationID      = "user-location"
	LocationPulseID = "user-location-pulse"
	LocationZoom    = 14
)

// Position is a geolocation fix reported by the browser.
type Position struct {
	Lat      float64 `json:"lat" minimum:"-90" maximum:"90" doc:"Latitude (WGS84)" example:"39.4699"`
	Lng      float64 `json:"lng" minimum:"-180" maximum:"180" doc:"Longitude (WGS84)" example:"-0.3763"`
	Accuracy float64 `json:"accuracy,omitempty" minimum:"0" doc:"Accuracy radius in metres"`
}

// Validate checks the coordinate ranges.
func (p Position) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", p.Lng)
	}
	return nil
}

// Geolocation error codes, matching the browser's GeolocationPositionError.
const (
	CodePermissionDenied    = "permission-denied"
	CodePositionUnavailable = "position-unavailable"
	CodeTimeout             = "timeout"
	CodeUnknown             = "unknown"
)

var locationMessages = map[string]string{
	CodePermissionDenied:    "Permiso denegado por el usuario",
	CodePositionUnavailable: "Información de ubicación no disponible",
	CodeTimeout:             "Tiempo de espera agotado",
	CodeUnknown:             "Error desconocido",
}

// LocationError is a failed geolocation request.
type LocationError struct {
	Code string
}

// NewLocationError normalizes code, accepting the browser's numeric codes
// 1, 2 and 3. Anything unrecognised becomes CodeUnknown.
func NewLocationError(code string) *LocationError {
	code = strings.ToLower(strings.TrimSpace(code))
	if n, err := strconv.Atoi(code); err == nil {
		switch n {
		case 1:
			code = CodePermissionDenied
		case 2:
			code = CodePositionUnavailable
		case 3:
			code = CodeTimeout
		}
	}
	if _, ok := locationMessages[code]; !ok {
		code = CodeUnknown
	}
	return &LocationError{Code: code}
}

// Error returns the message shown to the user.
func (e *LocationError) Error() string {
	return "Error al obtener la ubicación: " + locationMessages[e.Code]
}

func locationSpec() service.LayerSpec {
	return service.LayerSpec{
		ID:   LocationID,
		Name: "Tu ubicación",
		Role: service.RoleOverlay,
		Style: service.Style{
			Geometry:      service.GeomCircle,
			Radius:        8,
			Fill:          "#2ecc71",
			FillOpacity:   0.8,
			Stroke:        "#000000",
			StrokeWidth:   2,
			StrokeOpacity: 1,
		},
		Popup: &service.PopupSpec{Title: "Estás aquí"},
	}
}

func pulseSpec() service.LayerSpec {
	return service.LayerSpec{
		ID: LocationPulseID,
		Style: service.Style{
			Geometry:      service.GeomCircle,
			Radius:        12,
			Fill:          "#2ecc71",
			FillOpacity:   0.3,
			Stroke:        "#000000",
			StrokeWidth:   1,
			StrokeOpacity: 1,
		},
	}
}

// Locate places the user marker at pos and flies the viewport to it. A
// later call replaces the marker; it never stacks. It waits for a load or
// style change in progress, which may clear the map.
func (v *Viewer) Locate(pos Position) (mapview.Viewport, error) {
	if err := pos.Validate(); err != nil {
		return mapview.Viewport{}, err
	}
	v.ops.Lock()
	defer v.ops.Unlock()

	v.mu.Lock()
	v.position = &pos
	v.mu.Unlock()

	if err := v.placeMarker(pos); err != nil {
		return mapview.Viewport{}, err
	}
	v.bus.Publish(service.Event{Resource: "location", Action: "located", ID: LocationID, Level: service.LevelInfo,
		Message: fmt.Sprintf("%.5f, %.5f", pos.Lat, pos.Lng)})
	return v.m.Viewport(), nil
}

// LocateFailed reports a geolocation error and returns the user-facing
// message.
func (v *Viewer) LocateFailed(code string) *LocationError {
	lerr := NewLocationError(code)
	v.logger.Info("geolocation failed", zap.String("code", lerr.Code))
	v.bus.Publish(service.Event{Resource: "location", Action: "failed", Level: service.LevelError, Message: lerr.Error()})
	return lerr
}

// Position returns the last located position.
func (v *Viewer) Position() (Position, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.position == nil {
		return Position{}, false
	}
	return *v.position, true
}

func (v *Viewer) placeMarker(pos Position) error {
	pt := orb.Point{pos.Lng, pos.Lat}
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(pt)
	if pos.Accuracy > 0 {
		f.Properties["accuracy"] = pos.Accuracy
	}
	fc.Append(f)
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encoding location: %w", err)
	}

	entry := v.coord.Register(v.m, locationSpec(), data)
	if !entry.OK() {
		return entry.Failure
	}
	for _, l := range v.adapter.Layers(pulseSpec()) {
		if v.m.HasLayer(l.ID) {
			continue
		}
		l.Source = LocationID
		if err := v.m.AddLayer(l); err != nil && !errors.Is(err, mapview.ErrLayerExists) {
			return fmt.Errorf("adding pulse layer: %w", err)
		}
	}
	v.m.FlyTo(pt, LocationZoom)
	return nil
}
