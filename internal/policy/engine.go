package policy

/*
Движок жестких guardrails. Чистая функция без I/O: вся фактура
(флаги тенанта, состояние получателя, исчерпание лимитов) собирается
вызывающей стороной в PolicyContext. Правила проверяются по порядку,
побеждает первое сработавшее. Блокировка — типизированный результат,
не ошибка; аудит-лог блокировок пишет вызывающая сторона.
*/

import "github.com/xela07ax/tenant-agent-core/internal/domain"

type rule struct {
	applies func(domain.PolicyContext) bool
	check   func(domain.PolicyContext) (string, bool) // reason, passed
	kind    domain.PolicyType
}

// Порядок фиксирован: создание задач -> research gating -> spam guardrail.
var guardrails = []rule{
	{
		// create_task без основания запрещен: нужен явный запрос клиента,
		// compliance-дедлайн или safety-эскалация
		applies: func(c domain.PolicyContext) bool { return c.ActionType == domain.CategoryTask },
		check: func(c domain.PolicyContext) (string, bool) {
			if c.ClientRequestedTask || c.ComplianceDeadline || c.SafetyEscalation {
				return "", true
			}
			return "task creation requires a client request, compliance deadline or safety escalation", false
		},
		kind: domain.PolicyTaskCreation,
	},
	{
		// Автономный research допустим только на «здоровом» тенанте
		applies: func(c domain.PolicyContext) bool { return c.ActionType == domain.CategoryResearch },
		check: func(c domain.PolicyContext) (string, bool) {
			if c.EngagementViolations > 0 {
				return "research blocked: engagement violation backlog is not empty", false
			}
			if !c.GoalsOnTrack || !c.PipelineHealthy {
				return "research blocked: goals or pipeline are not healthy", false
			}
			return "", true
		},
		kind: domain.PolicyResearchGate,
	},
	{
		// Исходящая коммуникация: лимиты и состояние получателя
		applies: func(c domain.PolicyContext) bool { return c.ActionType.IsOutbound() },
		check: func(c domain.PolicyContext) (string, bool) {
			switch {
			case c.RateLimitExceeded:
				return "outbound blocked: rate limit exhausted for category", false
			case c.RecipientOptedOut:
				return "outbound blocked: recipient opted out", false
			case c.RecipientSuppressed:
				return "outbound blocked: recipient is suppressed", false
			case c.RecipientBounced:
				return "outbound blocked: recipient address bounced", false
			}
			return "", true
		},
		kind: domain.PolicySpamGuardrail,
	},
}

// Check прогоняет контекст через guardrails. Первое нарушение побеждает.
func Check(ctx domain.PolicyContext) domain.PolicyResult {
	for _, r := range guardrails {
		if !r.applies(ctx) {
			continue
		}
		if reason, ok := r.check(ctx); !ok {
			return domain.PolicyResult{
				Allowed:    false,
				Reason:     reason,
				PolicyType: r.kind,
			}
		}
	}
	return domain.PolicyResult{
		Allowed:    true,
		PolicyType: domain.PolicyNone,
	}
}
