package domain

// PolicyType — какой guardrail сработал. Закрытый набор, чтобы
// обработчики не сравнивали произвольные строки.
type PolicyType string

const (
	PolicyNone          PolicyType = "none" // действие разрешено
	PolicyTaskCreation  PolicyType = "task_creation"
	PolicyResearchGate  PolicyType = "research_gating"
	PolicySpamGuardrail PolicyType = "spam_guardrail"
)

// PolicyContext — всё, что нужно движку для решения. Собирается вызывающей
// стороной, сам движок никуда не ходит (pure function).
type PolicyContext struct {
	ActionType ActionCategory
	ActionData map[string]interface{}

	// Основания для создания задач
	ClientRequestedTask bool
	ComplianceDeadline  bool
	SafetyEscalation    bool

	// Состояние тенанта для research gating
	EngagementViolations int
	GoalsOnTrack         bool
	PipelineHealthy      bool

	// Состояние получателя для spam guardrail
	RecipientSuppressed bool
	RecipientBounced    bool
	RecipientOptedOut   bool

	// Уже известное исчерпание лимита по категории
	RateLimitExceeded bool
}

// PolicyResult — типизированный результат. Блокировка — это не ошибка,
// это нормальный ответ движка.
type PolicyResult struct {
	Allowed    bool       `json:"allowed"`
	Reason     string     `json:"reason"`
	PolicyType PolicyType `json:"policy_type"`
}
