package postgres

import (
	"context"
	"fmt"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// UpsertClock — новое касание замещает прошлое; часы не удаляются.
func (r *Repo) UpsertClock(ctx context.Context, clock domain.EngagementClock) error {
	query := `
		INSERT INTO engagement_clocks
			(tenant_id, contact_id, last_touch_at, last_touch_by, last_touch_type, engagement_interval_days)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, contact_id) DO UPDATE
			SET last_touch_at = EXCLUDED.last_touch_at,
			    last_touch_by = EXCLUDED.last_touch_by,
			    last_touch_type = EXCLUDED.last_touch_type,
			    engagement_interval_days = EXCLUDED.engagement_interval_days`

	_, err := r.pool.Exec(ctx, query,
		clock.TenantID, clock.ContactID, clock.LastTouchAt,
		clock.LastTouchBy, clock.LastTouch, clock.IntervalDays)
	if err != nil {
		return fmt.Errorf("postgres: upsert engagement clock: %w", err)
	}
	return nil
}

func (r *Repo) ListClocks(ctx context.Context, tenantID string) ([]domain.EngagementClock, error) {
	query := `
		SELECT tenant_id, contact_id, last_touch_at, last_touch_by, last_touch_type, engagement_interval_days
		FROM engagement_clocks
		WHERE tenant_id = $1`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list engagement clocks: %w", err)
	}
	defer rows.Close()

	var clocks []domain.EngagementClock
	for rows.Next() {
		var c domain.EngagementClock
		if err := rows.Scan(&c.TenantID, &c.ContactID, &c.LastTouchAt, &c.LastTouchBy, &c.LastTouch, &c.IntervalDays); err != nil {
			return nil, err
		}
		clocks = append(clocks, c)
	}
	return clocks, rows.Err()
}
