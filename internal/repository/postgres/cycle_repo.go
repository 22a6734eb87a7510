package postgres

/*
Файл cycle_repo.go — история прогонов цикла. cycle_number назначается
атомарно одним INSERT..SELECT: уникальный индекс (tenant_id, cycle_number)
гарантирует, что номер никогда не переиспользуется даже при гонке
инстансов мимо tenant lock'а.
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

func (r *Repo) LastCycleNumber(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(cycle_number), 0) FROM cycle_runs WHERE tenant_id = $1`,
		tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: last cycle number: %w", err)
	}
	return n, nil
}

// InsertRun пишет immutable запись прогона и возвращает назначенный номер.
func (r *Repo) InsertRun(ctx context.Context, run domain.CycleRun) (int64, error) {
	planJSON, _ := json.Marshal(run.Plan)
	actJSON, _ := json.Marshal(run.Act)
	reactJSON, _ := json.Marshal(run.React)
	var reflectJSON []byte
	if run.Reflect != nil {
		reflectJSON, _ = json.Marshal(run.Reflect)
	}
	metricsJSON, _ := json.Marshal(run.Metrics)

	query := `
		INSERT INTO cycle_runs
			(id, tenant_id, cycle_number, status, plan, act, react, reflect, metrics, error, started_at, ended_at)
		SELECT $1, $2, COALESCE(MAX(cycle_number), 0) + 1, $3, $4, $5, $6, $7, $8, $9, $10, $11
		FROM cycle_runs WHERE tenant_id = $2
		RETURNING cycle_number`

	var assigned int64
	err := r.pool.QueryRow(ctx, query,
		run.ID, run.TenantID, run.Status,
		planJSON, actJSON, reactJSON, reflectJSON, metricsJSON,
		run.Error, run.StartedAt, run.EndedAt,
	).Scan(&assigned)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert cycle run: %w", err)
	}
	return assigned, nil
}

// ListRuns — последние прогоны тенанта, свежие первыми.
func (r *Repo) ListRuns(ctx context.Context, tenantID string, limit int) ([]domain.CycleRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, tenant_id, cycle_number, status, plan, act, react, reflect, metrics, error, started_at, ended_at
		FROM cycle_runs
		WHERE tenant_id = $1
		ORDER BY cycle_number DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycle runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.CycleRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun — конкретный прогон; nil для 404 в хендлере.
func (r *Repo) GetRun(ctx context.Context, tenantID string, cycleNumber int64) (*domain.CycleRun, error) {
	query := `
		SELECT id, tenant_id, cycle_number, status, plan, act, react, reflect, metrics, error, started_at, ended_at
		FROM cycle_runs
		WHERE tenant_id = $1 AND cycle_number = $2`

	rows, err := r.pool.Query(ctx, query, tenantID, cycleNumber)
	if err != nil {
		return nil, fmt.Errorf("postgres: get cycle run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, nil
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func scanRun(rows pgx.Rows) (domain.CycleRun, error) {
	var run domain.CycleRun
	var planJSON, actJSON, reactJSON, reflectJSON, metricsJSON []byte

	err := rows.Scan(
		&run.ID, &run.TenantID, &run.CycleNumber, &run.Status,
		&planJSON, &actJSON, &reactJSON, &reflectJSON, &metricsJSON,
		&run.Error, &run.StartedAt, &run.EndedAt,
	)
	if err != nil {
		return run, fmt.Errorf("postgres: scan cycle run: %w", err)
	}

	_ = json.Unmarshal(planJSON, &run.Plan)
	_ = json.Unmarshal(actJSON, &run.Act)
	_ = json.Unmarshal(reactJSON, &run.React)
	_ = json.Unmarshal(metricsJSON, &run.Metrics)
	if len(reflectJSON) > 0 {
		var rf domain.ReflectOutput
		if json.Unmarshal(reflectJSON, &rf) == nil {
			run.Reflect = &rf
		}
	}
	return run, nil
}
