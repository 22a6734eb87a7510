package domain

import "time"

// RateLimitDecision — типизированный ответ счетчика окна.
// Отказ — нормальный результат, не ошибка.
type RateLimitDecision struct {
	Allowed      bool      `json:"allowed"`
	CurrentCount int64     `json:"current_count"`
	MaxAllowed   int64     `json:"max_allowed"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
}
