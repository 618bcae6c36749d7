package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/camper-budget/internal/common"
	"github.com/noah-isme/camper-budget/internal/pricing"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Categories handles GET /api/v1/catalog.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": Categories()})
}

// List handles GET /api/v1/catalog/{category}?region=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service not configured", nil)
		return
	}
	category, ok := ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "catalog category not found", nil)
		return
	}
	region, ok := pricing.ParseRegion(r.URL.Query().Get("region"))
	if !ok {
		common.WriteError(w, common.Validation("unknown region", map[string]string{"region": r.URL.Query().Get("region")}))
		return
	}
	items, err := h.service.List(r.Context(), category, region)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}
