package audit

import (
	"time"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// ActionEvent — одно событие аудита: что агент хотел сделать в рамках
// цикла и чем это кончилось. Пишется на КАЖДОЕ действие, включая
// заблокированные — блокировки и есть главный предмет аудита.
type ActionEvent struct {
	ID          string                 `json:"id"`           // UUID события
	TenantID    string                 `json:"tenant_id"`    // Чей цикл
	CycleNumber int64                  `json:"cycle_number"` // Какой прогон
	ActionID    string                 `json:"action_id"`
	Category    domain.ActionCategory  `json:"category"`
	Priority    domain.ActionPriority  `json:"priority"`
	Payload     map[string]interface{} `json:"payload,omitempty"`

	// Результат
	Outcome    domain.ActionOutcome `json:"outcome"`
	PolicyType domain.PolicyType    `json:"policy_type"` // none, если не блокировалось
	Reason     string               `json:"reason,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
	DurationMs int64                `json:"duration_ms"`
}
