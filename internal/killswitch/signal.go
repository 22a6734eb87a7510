package killswitch

import (
	"fmt"
	"strings"
)

// Signal — одно сообщение kill switch'а в pub/sub канале.
// Формат на проводе: "<tenant_id>:<on|off>". TenantID "*" переключает
// глобальный флаг. Для совместимости парсер принимает и true/false.
type Signal struct {
	TenantID string
	Disabled bool
}

// Global — сигнал адресован всей платформе, а не одному тенанту.
func (s Signal) Global() bool { return s.TenantID == GlobalTenantID }

func (s Signal) String() string {
	state := "off"
	if s.Disabled {
		state = "on"
	}
	return s.TenantID + ":" + state
}

// ParseSignal разбирает полезную нагрузку сообщения. Непонятный сигнал —
// ошибка, а не false: молча включить тенанта из-за опечатки нельзя.
func ParseSignal(payload string) (Signal, error) {
	id, state, ok := strings.Cut(payload, ":")
	if !ok || id == "" {
		return Signal{}, fmt.Errorf("killswitch: malformed signal %q", payload)
	}

	switch state {
	case "on", "true":
		return Signal{TenantID: id, Disabled: true}, nil
	case "off", "false":
		return Signal{TenantID: id, Disabled: false}, nil
	default:
		return Signal{}, fmt.Errorf("killswitch: unknown state in signal %q", payload)
	}
}
