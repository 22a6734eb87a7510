package domain

import "time"

// TouchType — вид контакта с клиентом.
type TouchType string

const (
	TouchEmail   TouchType = "email"
	TouchCall    TouchType = "call"
	TouchMeeting TouchType = "meeting"
	TouchNote    TouchType = "note"
)

// EngagementClock — «часы» обязательного касания по контакту.
// Мутируются только через RecordTouch, никогда не удаляются.
type EngagementClock struct {
	TenantID     string    `json:"tenant_id"`
	ContactID    string    `json:"contact_id"`
	LastTouchAt  time.Time `json:"last_touch_at"`
	LastTouchBy  string    `json:"last_touch_by"`
	LastTouch    TouchType `json:"last_touch_type"`
	IntervalDays int       `json:"engagement_interval_days"` // default 21
}

// NextTouchDue — дедлайн следующего касания.
func (c EngagementClock) NextTouchDue() time.Time {
	return c.LastTouchAt.AddDate(0, 0, c.IntervalDays)
}

// IsCompliant true, пока дедлайн не прошел (now == due еще compliant).
func (c EngagementClock) IsCompliant(now time.Time) bool {
	return !now.After(c.NextTouchDue())
}

// DaysOverdue — целые сутки просрочки; 0 для compliant-контактов.
func (c EngagementClock) DaysOverdue(now time.Time) int {
	if c.IsCompliant(now) {
		return 0
	}
	return int(now.Sub(c.NextTouchDue()).Hours() / 24)
}

// PriorityScore — монотонная функция от просрочки: score == daysOverdue,
// с потолком 100, чтобы древние контакты не вытесняли всё остальное навсегда.
func (c EngagementClock) PriorityScore(now time.Time) int {
	d := c.DaysOverdue(now)
	if d > 100 {
		return 100
	}
	return d
}

// EngagementViolation — нарушение с уже вычисленными полями на момент выборки.
type EngagementViolation struct {
	Clock         EngagementClock `json:"clock"`
	DaysOverdue   int             `json:"days_overdue"`
	PriorityScore int             `json:"priority_score"`
}

type EngagementStats struct {
	TotalContacts      int     `json:"total_contacts"`
	CompliantContacts  int     `json:"compliant_contacts"`
	ComplianceRate     float64 `json:"compliance_rate"`      // compliant / total
	AverageDaysOverdue float64 `json:"average_days_overdue"` // только по нарушителям
}
