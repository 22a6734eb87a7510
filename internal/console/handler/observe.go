package handler

/*
Read-only observability консоли: алерты, engagement-статистика,
история sandbox-исполнений.
*/

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

type AlertSource interface {
	ListAlerts(ctx context.Context, tenantID string, limit int) ([]domain.Alert, error)
}

type EngagementStatsSource interface {
	Stats(ctx context.Context, tenantID string) (domain.EngagementStats, error)
}

type ExecutionSource interface {
	ListExecutions(ctx context.Context, tenantID string, limit int) ([]domain.SandboxExecution, error)
}

type ObserveHandler struct {
	alerts     AlertSource
	engagement EngagementStatsSource
	executions ExecutionSource
}

func NewObserveHandler(alerts AlertSource, eng EngagementStatsSource, exec ExecutionSource) *ObserveHandler {
	return &ObserveHandler{alerts: alerts, engagement: eng, executions: exec}
}

// Alerts — GET /v1/alerts?tenant=...&limit=... (tenant опционален)
func (h *ObserveHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	alerts, err := h.alerts.ListAlerts(r.Context(), r.URL.Query().Get("tenant"), limit)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
}

// EngagementStats — GET /v1/engagement/{tenant}/stats
func (h *ObserveHandler) EngagementStats(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	stats, err := h.engagement.Stats(r.Context(), tenantID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// SandboxExecutions — GET /v1/sandbox/executions?tenant=...
func (h *ObserveHandler) SandboxExecutions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	execs, err := h.executions.ListExecutions(r.Context(), r.URL.Query().Get("tenant"), limit)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"executions": execs, "count": len(execs)})
}
