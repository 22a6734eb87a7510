package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// RunSource — чтение истории прогонов цикла.
type RunSource interface {
	ListRuns(ctx context.Context, tenantID string, limit int) ([]domain.CycleRun, error)
	GetRun(ctx context.Context, tenantID string, cycleNumber int64) (*domain.CycleRun, error)
}

type RunHandler struct {
	source RunSource
}

func NewRunHandler(source RunSource) *RunHandler {
	return &RunHandler{source: source}
}

// List — GET /v1/runs?tenant=...&limit=...
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		http.Error(w, "tenant query parameter is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.source.ListRuns(r.Context(), tenantID, limit)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"runs": runs, "count": len(runs)})
}

// Get — GET /v1/runs/{tenant}/{n}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	n, err := strconv.ParseInt(chi.URLParam(r, "n"), 10, 64)
	if err != nil || n <= 0 {
		http.Error(w, "invalid cycle number", http.StatusBadRequest)
		return
	}

	run, err := h.source.GetRun(r.Context(), tenantID, n)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, run)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
