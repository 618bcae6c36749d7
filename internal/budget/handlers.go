package budget

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/camper-budget/internal/common"
)

// Handler exposes budget endpoints.
type Handler struct {
	Service *Service
}

// Quote handles POST /api/v1/budgets/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Service.Quote(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// Create handles POST /api/v1/budgets.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	b, err := h.Service.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/budgets/"+b.ID.String())
	common.JSON(w, http.StatusCreated, map[string]any{"data": b})
}

// Get handles GET /api/v1/budgets/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.Service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

// Update handles PATCH /api/v1/budgets/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch Patch
	if err := common.DecodeJSON(r, &patch); err != nil {
		common.WriteError(w, err)
		return
	}
	b, err := h.Service.Update(r.Context(), id, patch)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

// SetPrimary handles POST /api/v1/budgets/{id}/primary.
func (h *Handler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.Service.SetPrimary(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

// Summary handles GET /api/v1/budgets/{id}/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s, err := h.Service.Summary(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s})
}

// ListByOpportunity handles GET /api/v1/opportunities/{id}/budgets.
func (h *Handler) ListByOpportunity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	items, err := h.Service.List(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if items == nil {
		items = []Budget{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Primary handles GET /api/v1/opportunities/{id}/budgets/primary.
func (h *Handler) Primary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.Service.Primary(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": b})
}

// Routes mounts the budget endpoints. writes wraps mutating routes, e.g. with
// rate limiting; create additionally gets the idempotency middleware.
func (h *Handler) Routes(r chi.Router, writes, idempotent func(http.Handler) http.Handler) {
	if writes == nil {
		writes = passthrough
	}
	if idempotent == nil {
		idempotent = passthrough
	}
	r.Route("/budgets", func(r chi.Router) {
		r.Post("/quote", h.Quote)
		r.With(writes, idempotent).Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.With(writes).Patch("/{id}", h.Update)
		r.With(writes).Post("/{id}/primary", h.SetPrimary)
		r.Get("/{id}/summary", h.Summary)
	})
	r.Get("/opportunities/{id}/budgets", h.ListByOpportunity)
	r.Get("/opportunities/{id}/budgets/primary", h.Primary)
}

func passthrough(next http.Handler) http.Handler { return next }

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid id", map[string]string{"id": "uuid"})
		return uuid.Nil, false
	}
	return id, true
}
