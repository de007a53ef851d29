// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-flood/internal/db"
	"github.com/joeblew999/plat-flood/internal/humastar"
	"github.com/joeblew999/plat-flood/internal/mapview"
	"github.com/joeblew999/plat-flood/internal/service"
	"github.com/joeblew999/plat-flood/internal/share"
	"github.com/joeblew999/plat-flood/internal/viewer"
)

// Version is reported by /health and /api/v1/info.
const Version = "1.0.0"

// Services holds the dependencies of the API handlers.
type Services struct {
	Viewer *viewer.Viewer
	// History is optional; /api/v1/loads answers 503 without it.
	History *db.Store
	DataDir string
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"zonas-inundables"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type LayersOutput struct {
	Body []service.LayerSpec
}

type LayerOutput struct {
	Body LayerBody
}

type MapOutput struct {
	Body any
}

type ReportOutput struct {
	Body ReportBody
}

type StyleInput struct {
	Body struct {
		Basemap string `json:"basemap,omitempty" doc:"Basemap name; empty cycles to the next one" example:"satellite"`
	}
}

type PopupInput struct {
	IDInput
	Body struct {
		Properties map[string]any `json:"properties" doc:"Properties of the clicked feature"`
	}
}

type PopupBody struct {
	Layer string `json:"layer" doc:"Layer that handled the click"`
	HTML  string `json:"html" doc:"Rendered popup"`
}

type LocationInput struct {
	Body struct {
		Position *viewer.Position `json:"position,omitempty" doc:"Fix reported by the browser"`
		Error    string           `json:"error,omitempty" doc:"Geolocation error code (permission-denied, position-unavailable, timeout, unknown or 1-3)" example:"permission-denied"`
	}
}

type LocationBody struct {
	Located  bool              `json:"located" doc:"Whether the marker was placed"`
	Viewport *mapview.Viewport `json:"viewport,omitempty" doc:"Viewport after flying to the position"`
	Message  string            `json:"message,omitempty" doc:"User-facing error message"`
}

type ShareInput struct {
	URL   string `query:"url" doc:"Page to share; defaults to this server's viewer" example:"https://example.org/viewer"`
	Title string `query:"title" doc:"Share title"`
	Text  string `query:"text" doc:"Share text"`

	host string
}

// Resolve captures the request host for the default page URL.
func (i *ShareInput) Resolve(ctx huma.Context) []error {
	i.host = ctx.Host()
	return nil
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers the read-only catalog routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
}

// RegisterMap registers the map document and its actions.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map", h.GetMap, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/reload", h.Reload, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/style", h.ChangeStyle, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/layers/{id}/popup", h.Popup, huma.OperationTags("map"))
	huma.Put(api, "/api/v1/map/location", h.PutLocation, huma.OperationTags("map"))
}

// RegisterShare registers the share link route.
func (h *APIHandler) RegisterShare(api huma.API) {
	huma.Get(api, "/api/v1/share", h.GetShare, huma.OperationTags("share"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	return &LayersOutput{Body: h.svc.Viewer.Catalog().List()}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	spec, ok := h.svc.Viewer.Catalog().Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	body := LayerBody{LayerSpec: spec, Status: "pending"}
	if report, ok := h.svc.Viewer.LastReport(); ok {
		for _, e := range report.Result.Entries {
			if e.ID == spec.ID {
				body.Status = e.Status
				body.Sample = e.Sample
				body.Failure = e.Failure
			}
		}
	}
	return &LayerOutput{Body: body}, nil
}

func (h *APIHandler) GetMap(ctx context.Context, input *struct{}) (*MapOutput, error) {
	return &MapOutput{Body: h.svc.Viewer.Document()}, nil
}

func (h *APIHandler) Reload(ctx context.Context, input *struct{}) (*ReportOutput, error) {
	report := h.svc.Viewer.Load(ctx)
	return &ReportOutput{Body: ReportBody{Report: report}}, nil
}

func (h *APIHandler) ChangeStyle(ctx context.Context, input *StyleInput) (*ReportOutput, error) {
	report, err := h.svc.Viewer.ChangeStyle(ctx, input.Body.Basemap)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	return &ReportOutput{Body: ReportBody{Report: report}}, nil
}

func (h *APIHandler) Popup(ctx context.Context, input *PopupInput) (*struct{ Body PopupBody }, error) {
	html, err := h.svc.Viewer.Popup(input.ID, input.Body.Properties)
	if err != nil {
		if errors.Is(err, viewer.ErrNoPopup) {
			return nil, huma.Error404NotFound(err.Error())
		}
		return nil, huma.Error500InternalServerError("popup failed", err)
	}
	return &struct{ Body PopupBody }{Body: PopupBody{Layer: input.ID, HTML: html}}, nil
}

func (h *APIHandler) PutLocation(ctx context.Context, input *LocationInput) (*struct{ Body LocationBody }, error) {
	out := &struct{ Body LocationBody }{}
	switch {
	case input.Body.Position != nil:
		vp, err := h.svc.Viewer.Locate(*input.Body.Position)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		out.Body = LocationBody{Located: true, Viewport: &vp}
	case input.Body.Error != "":
		out.Body = LocationBody{Message: h.svc.Viewer.LocateFailed(input.Body.Error).Error()}
	default:
		return nil, huma.Error400BadRequest("position or error is required")
	}
	return out, nil
}

func (h *APIHandler) GetShare(ctx context.Context, input *ShareInput) (*struct{ Body share.Payload }, error) {
	pageURL := input.URL
	if pageURL == "" && input.host != "" {
		pageURL = "http://" + input.host + "/viewer"
	}
	payload, err := share.Link(input.Title, input.Text, pageURL)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	return &struct{ Body share.Payload }{Body: payload}, nil
}

var _ humastar.Actor = ReportBody{}
