// Package viewer contains the Datastar SSE handlers behind the map page.
package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-flood/internal/humastar"
	"github.com/joeblew999/plat-flood/internal/service"
	"github.com/joeblew999/plat-flood/internal/templates"
	flood "github.com/joeblew999/plat-flood/internal/viewer"
)

// EventHandler streams viewer notices to the page via SSE.
type EventHandler struct {
	humastar.Handler
	bus *service.EventBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(v *flood.Viewer, renderer *templates.Renderer) *EventHandler {
	return &EventHandler{
		Handler: humastar.Handler{Renderer: renderer},
		bus:     v.Bus(),
	}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/viewer/events", h.Events,
		huma.OperationTags(humastar.StreamTag),
	)
}

// Events forwards every bus event. Messages go to #notices; map and layer
// changes also fire a "map-changed" event so the page refetches the
// document.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Message != "" && h.Renderer != nil {
					if html, err := h.Renderer.Notice(ev); err == nil {
						sse.Append(html, "#notices")
					}
				}
				switch ev.Resource {
				case "map", "layers", "location":
					sse.DispatchCustomEvent("map-changed", map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
						"id":       ev.ID,
					})
				}
			}
		}
	}), nil
}
