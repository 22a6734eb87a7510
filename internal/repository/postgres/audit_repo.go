package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xela07ax/tenant-agent-core/internal/audit"
)

// WriteBatch — пакетная вставка событий аудита одним запросом.
// Вызывается только из batching recorder'а.
func (r *Repo) WriteBatch(ctx context.Context, events []audit.ActionEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице action_audit
	numFields := 12
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11, p+12)

		payload, _ := json.Marshal(e.Payload)

		vals = append(vals,
			e.ID, e.TenantID, e.CycleNumber, e.ActionID,
			e.Category, e.Priority, payload,
			e.Outcome, e.PolicyType, e.Reason, e.DurationMs, e.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO action_audit (id, tenant_id, cycle_number, action_id, category, priority, payload, outcome, policy_type, reason, duration_ms, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}
