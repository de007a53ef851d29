package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-flood/internal/db"
	"github.com/joeblew999/plat-flood/internal/humastar"
)

type LoadsInput struct {
	humastar.PageInput
}

type LoadsOutput struct {
	Body humastar.PageBody[db.Cycle]
}

// RegisterLoads registers the load history route.
func (h *APIHandler) RegisterLoads(api huma.API) {
	huma.Get(api, "/api/v1/loads", h.GetLoads, huma.OperationTags("history"))
}

// GetLoads lists recorded load cycles, newest first.
func (h *APIHandler) GetLoads(ctx context.Context, input *LoadsInput) (*LoadsOutput, error) {
	if h.svc.History == nil {
		return nil, huma.Error503ServiceUnavailable("Load history not available")
	}

	total, err := h.svc.History.Count(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to count load cycles", err)
	}
	cycles, err := h.svc.History.Recent(ctx, input.Offset, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list load cycles", err)
	}
	return &LoadsOutput{Body: humastar.NewPage(input.PageInput, total, cycles)}, nil
}
