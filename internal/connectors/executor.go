package connectors

import (
	"context"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// ActionExecutor — внешняя граница исполнения бизнес-действий.
// Ядро никогда не реализует доменные действия само (письма, записи в CRM):
// оно только решает, МОЖНО ли и КОГДА, и делегирует сюда.
type ActionExecutor interface {
	Execute(ctx context.Context, action domain.PlannedAction) (domain.ActionResult, error)
}
