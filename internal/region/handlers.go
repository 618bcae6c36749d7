package region

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/camper-budget/internal/common"
	"github.com/noah-isme/camper-budget/internal/pricing"
)

// Handler exposes regional configuration endpoints.
type Handler struct {
	Service *Service
}

// List handles GET /api/v1/regions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Get handles GET /api/v1/regions/{region}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	region, ok := parse(w, r)
	if !ok {
		return
	}
	cfg, err := h.Service.For(r.Context(), region)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cfg})
}

// Put handles PUT /api/v1/regions/{region}.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	region, ok := parse(w, r)
	if !ok {
		return
	}
	var in UpsertInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	cfg, err := h.Service.Upsert(r.Context(), region, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cfg})
}

func parse(w http.ResponseWriter, r *http.Request) (pricing.Region, bool) {
	raw := chi.URLParam(r, "region")
	region := pricing.Region(raw)
	if raw == "" || !region.Valid() {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "region not found", nil)
		return "", false
	}
	return region, true
}
