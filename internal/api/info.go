package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-flood/internal/mapview"
)

type InfoBody struct {
	Name     string            `json:"name" doc:"Service name"`
	Version  string            `json:"version" doc:"Service version"`
	Renderer string            `json:"renderer" doc:"Map library the documents are rendered for" example:"maplibre"`
	Basemaps []mapview.Basemap `json:"basemaps" doc:"Available basemaps, default first"`
	State    string            `json:"state" doc:"Phase of the current load cycle" example:"done"`
	DataDir  string            `json:"data_dir" doc:"Data directory path"`
	History  bool              `json:"history" doc:"Whether load history is recorded"`
	Layers   []string          `json:"layers" doc:"Catalog layer IDs"`
	Samples  []string          `json:"samples,omitempty" doc:"Layers that show sample data when their dataset fails; empty unless the fallback is enabled"`
}

// RegisterInfo registers the service info route.
func (h *APIHandler) RegisterInfo(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	v := h.svc.Viewer
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-flood",
		Version:  Version,
		Renderer: v.Adapter().Name(),
		Basemaps: v.Adapter().Basemaps(),
		State:    v.State().String(),
		DataDir:  h.svc.DataDir,
		History:  h.svc.History != nil,
		Layers:   v.Catalog().IDs(),
		Samples:  v.Samples(),
	}}, nil
}
