package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/tenant-agent-core/internal/console/service"
)

type TenantHandler struct {
	service *service.TenantService
}

func NewTenantHandler(s *service.TenantService) *TenantHandler {
	return &TenantHandler{service: s}
}

// Disable — POST /v1/tenants/{id}/disable (мгновенный kill switch)
func (h *TenantHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.Disable)
}

// Enable — POST /v1/tenants/{id}/enable
func (h *TenantHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.Enable)
}

func (h *TenantHandler) toggle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, tenantID string) error) {
	tenantID := chi.URLParam(r, "id")
	if tenantID == "" {
		http.Error(w, "tenant id is required", http.StatusBadRequest)
		return
	}

	if err := fn(r.Context(), tenantID); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"tenant_id": tenantID, "status": "ok"})
}
