package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// Record пишет алерт. Реализует AlertSink лимитера и оркестратора.
func (r *Repo) Record(ctx context.Context, alert domain.Alert) error {
	details, _ := json.Marshal(alert.Details)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO alerts (id, tenant_id, kind, severity, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		alert.ID, alert.TenantID, alert.Kind, alert.Severity, alert.Message, details, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: record alert: %w", err)
	}
	return nil
}

// ListAlerts — свежие алерты для консоли.
func (r *Repo) ListAlerts(ctx context.Context, tenantID string, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, tenant_id, kind, severity, message, details, created_at
		FROM alerts
		WHERE ($1 = '' OR tenant_id = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var details []byte
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Kind, &a.Severity, &a.Message, &details, &a.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(details, &a.Details)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
