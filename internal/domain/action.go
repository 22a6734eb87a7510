package domain

import "time"

// ActionCategory — закрытый набор категорий действий агента.
// Любое side-effect действие обязано иметь категорию: по ней считаются
// лимиты и выбираются guardrails.
type ActionCategory string

const (
	CategoryEmail         ActionCategory = "email"
	CategoryTask          ActionCategory = "task"
	CategoryResearch      ActionCategory = "research"
	CategorySandboxJob    ActionCategory = "sandbox_job"
	CategoryOrderFollowup ActionCategory = "order_followup"
)

// IsOutbound true для категорий, которые касаются внешнего получателя
// (для них работает spam guardrail).
func (c ActionCategory) IsOutbound() bool {
	return c == CategoryEmail
}

// ActionPriority — приоритет запланированного действия.
type ActionPriority string

const (
	PriorityHigh   ActionPriority = "high"
	PriorityMedium ActionPriority = "medium"
	PriorityLow    ActionPriority = "low"
)

// Rank для детерминированной сортировки очереди (меньше = раньше).
func (p ActionPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// ActionOutcome — исход обработки действия в фазе ACT.
type ActionOutcome string

const (
	OutcomeSystemExecuted ActionOutcome = "system_executed" // агент выполнил сам
	OutcomeHumanCreated   ActionOutcome = "human_created"   // создана задача человеку
	OutcomeBlocked        ActionOutcome = "blocked"         // policy или rate limit
)

// PlannedAction — единица очереди, которую строит фаза PLAN.
// Seq фиксирует порядок вставки: при равном приоритете очередь стабильна (FIFO).
type PlannedAction struct {
	ID       string                 `json:"id"`
	TenantID string                 `json:"tenant_id"`
	Category ActionCategory         `json:"category"`
	Priority ActionPriority         `json:"priority"`
	Reason   string                 `json:"reason"`
	Payload  map[string]interface{} `json:"payload,omitempty"`

	// Ссылки на источник действия (что именно планируем чинить)
	ContactID string `json:"contact_id,omitempty"`
	OrderID   string `json:"order_id,omitempty"`

	Seq int `json:"seq"`
}

// ActionResult — что вернул внешний исполнитель.
type ActionResult struct {
	ActionID   string                 `json:"action_id"`
	Outcome    ActionOutcome          `json:"outcome"`
	Detail     string                 `json:"detail,omitempty"`
	Response   map[string]interface{} `json:"response,omitempty"`
	ExecutedAt time.Time              `json:"executed_at"`
}

// Outcome — внешний отклик, который фаза REACT превращает в обновления
// engagement-часов и метрик (ответ на письмо, bounce, смена статуса заказа).
type OutcomeKind string

const (
	OutcomeReply       OutcomeKind = "reply"
	OutcomeBounce      OutcomeKind = "bounce"
	OutcomeOrderUpdate OutcomeKind = "order_update"
	OutcomeTouchMade   OutcomeKind = "touch_made"
)

type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	TenantID  string      `json:"tenant_id"`
	ContactID string      `json:"contact_id,omitempty"`
	OrderID   string      `json:"order_id,omitempty"`
	Touch     *TouchType  `json:"touch,omitempty"`
	By        string      `json:"by,omitempty"`
	At        time.Time   `json:"at"`
}
