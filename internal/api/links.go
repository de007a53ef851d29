package api

import (
	"net/http"

	"github.com/joeblew999/plat-flood/internal/humastar"
	"github.com/joeblew999/plat-flood/internal/layers"
	"github.com/joeblew999/plat-flood/internal/service"
	"github.com/joeblew999/plat-flood/internal/viewer"
)

// layerActions are advertised on every catalog layer.
var layerActions = []humastar.ActionDef{
	{Rel: "popup", Pattern: "/api/v1/map/layers/%s/popup", Method: http.MethodPost, Title: "Open popup"},
}

// LayerBody is a catalog entry with the status of its last load.
type LayerBody struct {
	service.LayerSpec
	Status  string          `json:"status" enum:"pending,success,failure" doc:"Outcome of the last load cycle"`
	Sample  bool            `json:"sample,omitempty" doc:"Sample data is shown instead of the real dataset"`
	Failure *layers.Failure `json:"failure,omitempty" doc:"Why the last load failed"`
}

// Actions offers the popup action only for interactive layers.
func (b LayerBody) Actions() []humastar.Action {
	if b.Popup == nil || b.Status != layers.StatusSuccess {
		return nil
	}
	return humastar.ActionsFor(b.ID, layerActions)
}

// ReportBody is the outcome of a load cycle.
type ReportBody struct {
	viewer.Report
}

// Actions lets clients reload or cycle the style after any cycle, and
// retry when something failed.
func (b ReportBody) Actions() []humastar.Action {
	actions := []humastar.Action{
		{Rel: "style", Href: "/api/v1/map/style", Method: http.MethodPost, Title: "Change basemap"},
	}
	if len(b.Result.Failed()) > 0 {
		actions = append(actions, humastar.Action{Rel: "retry", Href: "/api/v1/map/reload", Method: http.MethodPost, Title: "Retry failed layers"})
	}
	return actions
}
