package domain

import "time"

// AlertKind — закрытый набор видов алертов observability-контура.
type AlertKind string

const (
	AlertRateLimitExceeded AlertKind = "rate_limit_exceeded"
	AlertCycleFailed       AlertKind = "cycle_failed"
	AlertSandboxFailed     AlertKind = "sandbox_failed"
)

type Alert struct {
	ID       string                 `json:"id"`
	TenantID string                 `json:"tenant_id"`
	Kind     AlertKind              `json:"kind"`
	Severity Severity               `json:"severity"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
