package connectors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// MockExecutor — заглушка внешнего исполнителя для локального запуска
// и тестов: имитирует задержку и отвечает по категории действия.
type MockExecutor struct{}

func (m *MockExecutor) Execute(ctx context.Context, action domain.PlannedAction) (domain.ActionResult, error) {
	// Имитируем задержку 50-300мс
	latency := time.Duration(50+rand.Intn(250)) * time.Millisecond

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return domain.ActionResult{}, ctx.Err()
	}

	result := domain.ActionResult{
		ActionID:   action.ID,
		ExecutedAt: time.Now(),
	}

	switch action.Category {
	case domain.CategoryEmail:
		result.Outcome = domain.OutcomeSystemExecuted
		result.Detail = "outreach email sent"
		result.Response = map[string]interface{}{"message_id": fmt.Sprintf("msg-%s", action.ID)}

	case domain.CategoryTask, domain.CategoryOrderFollowup:
		// Эти категории уходят человеку
		result.Outcome = domain.OutcomeHumanCreated
		result.Detail = "review task created"

	case domain.CategoryResearch:
		result.Outcome = domain.OutcomeSystemExecuted
		result.Detail = "research note prepared"

	default:
		return domain.ActionResult{}, fmt.Errorf("category %s not supported by executor", action.Category)
	}

	return result, nil
}
