package domain

import "time"

// AgentConfig — неизменяемый снимок конфигурации тенанта.
// Загружается ОДИН раз на цикл и передается явно через все фазы:
// никаких процессных синглтонов с мутабельным состоянием.
type AgentConfig struct {
	TenantID      string
	GlobalEnabled bool
	TenantEnabled bool

	// Каданс цикла. Единица времени не зашита в state machine.
	CycleInterval time.Duration

	// Лимиты по категориям действий
	MaxPerHour map[ActionCategory]int
	MaxPerDay  map[ActionCategory]int

	MaxSandboxJobsPerHour  int
	EngagementIntervalDays int
}

// Enabled — короткое замыкание всего цикла: выключенный тенант
// не берет lock и не оставляет run record.
func (c AgentConfig) Enabled() bool {
	return c.GlobalEnabled && c.TenantEnabled
}

// HourlyLimit возвращает лимит категории или 0 (= лимит не настроен).
func (c AgentConfig) HourlyLimit(cat ActionCategory) int {
	if c.MaxPerHour == nil {
		return 0
	}
	return c.MaxPerHour[cat]
}
