package viewer

import (
	"context"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-flood/internal/humastar"
	"github.com/joeblew999/plat-flood/internal/templates"
	flood "github.com/joeblew999/plat-flood/internal/viewer"
)

// ActionHandler answers the page's buttons and map clicks with SSE patches.
type ActionHandler struct {
	humastar.Handler
	viewer *flood.Viewer
}

// NewActionHandler creates a new action handler.
func NewActionHandler(v *flood.Viewer, renderer *templates.Renderer) *ActionHandler {
	return &ActionHandler{
		Handler: humastar.Handler{Renderer: renderer},
		viewer:  v,
	}
}

func (h *ActionHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/viewer/popup", h.Popup, huma.OperationTags(humastar.StreamTag))
	huma.Post(api, "/api/v1/viewer/style", h.Style, huma.OperationTags(humastar.StreamTag))
	huma.Post(api, "/api/v1/viewer/locate", h.Locate, huma.OperationTags(humastar.StreamTag))
}

// Popup renders the popup for signals {layer, props} into #popup.
func (h *ActionHandler) Popup(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	layer := signals.String("layer")
	if layer == "" {
		return nil, huma.Error400BadRequest("layer is required")
	}

	return h.Stream(func(sse humastar.SSE) {
		html, err := h.viewer.Popup(layer, signals.Map("props"))
		if err != nil {
			sse.Signals(map[string]any{"popupOpen": false})
			return
		}
		sse.Patch(html, "#popup")
		sse.Signals(map[string]any{"popupOpen": true})
	}), nil
}

// Style cycles the basemap, or switches to signal basemap when set.
func (h *ActionHandler) Style(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	return h.Stream(func(sse humastar.SSE) {
		report, err := h.viewer.ChangeStyle(ctx, signals.String("basemap"))
		if err != nil {
			sse.Error(err.Error())
			return
		}
		out := map[string]any{"basemap": report.Basemap}
		if report.Warning != "" {
			out["error"] = report.Warning
		}
		sse.Signals(out)
	}), nil
}

// Locate handles the browser's geolocation callback. Signals carry either
// {lat, lng, accuracy} or {code}.
func (h *ActionHandler) Locate(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	return h.Stream(func(sse humastar.SSE) {
		if signals.Has("code") {
			code := signals.String("code")
			if code == "" {
				code = strconv.Itoa(int(signals.Float("code")))
			}
			sse.Error(h.viewer.LocateFailed(code).Error())
			return
		}
		pos := flood.Position{
			Lat:      signals.Float("lat"),
			Lng:      signals.Float("lng"),
			Accuracy: signals.Float("accuracy"),
		}
		if _, err := h.viewer.Locate(pos); err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Patch(h.location(), "#location")
	}), nil
}

func (h *ActionHandler) location() string {
	if h.Renderer == nil {
		return ""
	}
	html, err := h.Renderer.Location("Estás aquí")
	if err != nil {
		return ""
	}
	return html
}
