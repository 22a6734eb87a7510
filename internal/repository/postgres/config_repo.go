package postgres

/*
Файл config_repo.go — конфигурация тенантов и переключатели kill switch'а.
Глобальный флаг живет одной строкой в platform_settings; тенантские
настройки мержатся поверх дефолтов процесса.
*/

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// GetAgentConfig собирает снимок конфигурации тенанта. Отсутствующая
// строка тенанта = тенант не подключен (disabled), это не ошибка.
func (r *Repo) GetAgentConfig(ctx context.Context, tenantID string) (domain.AgentConfig, error) {
	cfg := domain.AgentConfig{
		TenantID:               tenantID,
		CycleInterval:          time.Hour,
		EngagementIntervalDays: 21,
		MaxPerHour:             map[domain.ActionCategory]int{},
		MaxPerDay:              map[domain.ActionCategory]int{},
	}

	global, err := r.IsGloballyDisabled(ctx)
	if err != nil {
		return cfg, err
	}
	cfg.GlobalEnabled = !global

	query := `
		SELECT enabled, cycle_interval_seconds, engagement_interval_days,
		       max_emails_per_hour, max_tasks_per_hour, max_research_per_hour,
		       max_followups_per_hour, max_sandbox_jobs_per_hour
		FROM tenant_configs WHERE tenant_id = $1`

	var intervalSec int64
	var emails, tasks, research, followups int
	err = r.pool.QueryRow(ctx, query, tenantID).Scan(
		&cfg.TenantEnabled, &intervalSec, &cfg.EngagementIntervalDays,
		&emails, &tasks, &research, &followups, &cfg.MaxSandboxJobsPerHour,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			cfg.TenantEnabled = false
			return cfg, nil
		}
		return cfg, fmt.Errorf("postgres: get tenant config %s: %w", tenantID, err)
	}

	if intervalSec > 0 {
		cfg.CycleInterval = time.Duration(intervalSec) * time.Second
	}
	cfg.MaxPerHour[domain.CategoryEmail] = emails
	cfg.MaxPerHour[domain.CategoryTask] = tasks
	cfg.MaxPerHour[domain.CategoryResearch] = research
	cfg.MaxPerHour[domain.CategoryOrderFollowup] = followups
	cfg.MaxPerHour[domain.CategorySandboxJob] = cfg.MaxSandboxJobsPerHour
	return cfg, nil
}

// ListActiveTenants — тенанты для обхода планировщиком.
func (r *Repo) ListActiveTenants(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT tenant_id FROM tenant_configs WHERE enabled ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDisabledTenants — для прогрева kill switch кэша.
func (r *Repo) ListDisabledTenants(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT tenant_id FROM tenant_configs WHERE NOT enabled`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list disabled tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsGloballyDisabled читает глобальный флаг платформы.
func (r *Repo) IsGloballyDisabled(ctx context.Context) (bool, error) {
	var disabled bool
	err := r.pool.QueryRow(ctx,
		`SELECT value::bool FROM platform_settings WHERE key = 'agent_disabled'`).Scan(&disabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil // Флага нет = платформа включена
		}
		return false, fmt.Errorf("postgres: get global flag: %w", err)
	}
	return disabled, nil
}

// SetTenantEnabled — точечный переключатель консоли.
func (r *Repo) SetTenantEnabled(ctx context.Context, tenantID string, enabled bool) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE tenant_configs SET enabled = $1, updated_at = NOW() WHERE tenant_id = $2`,
		enabled, tenantID)
	if err != nil {
		return fmt.Errorf("postgres: set tenant enabled: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: tenant %s not found", tenantID)
	}
	return nil
}
