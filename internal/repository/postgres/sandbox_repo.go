package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// SaveExecution пишет запись об исполнении шаблона (терминальный снимок).
func (r *Repo) SaveExecution(ctx context.Context, e domain.SandboxExecution) error {
	params, _ := json.Marshal(e.InputParams)
	inFiles, _ := json.Marshal(e.InputFiles)
	output, _ := json.Marshal(e.OutputData)
	outFiles, _ := json.Marshal(e.OutputFiles)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO sandbox_executions
			(id, tenant_id, template_name, input_params, input_file_refs,
			 status, output_data, output_file_refs,
			 duration_ms, memory_used_mb, error_message, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.TenantID, e.TemplateName, params, inFiles,
		e.Status, output, outFiles,
		e.DurationMs, e.MemoryUsedMb, e.ErrorMessage, e.StartedAt, e.EndedAt)
	if err != nil {
		return fmt.Errorf("postgres: save sandbox execution: %w", err)
	}
	return nil
}

// ListExecutions — история исполнений для консоли, свежие первыми.
func (r *Repo) ListExecutions(ctx context.Context, tenantID string, limit int) ([]domain.SandboxExecution, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, tenant_id, template_name, input_params, status,
		       duration_ms, memory_used_mb, error_message, started_at, ended_at
		FROM sandbox_executions
		WHERE ($1 = '' OR tenant_id = $1)
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sandbox executions: %w", err)
	}
	defer rows.Close()

	var out []domain.SandboxExecution
	for rows.Next() {
		var e domain.SandboxExecution
		var params []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.TemplateName, &params, &e.Status,
			&e.DurationMs, &e.MemoryUsedMb, &e.ErrorMessage, &e.StartedAt, &e.EndedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(params, &e.InputParams)
		out = append(out, e)
	}
	return out, rows.Err()
}
