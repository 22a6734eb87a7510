package connectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// ReliabilityWrapper оборачивает внешнего исполнителя в три слоя:
// локальный rate limiter (щадим чужой API), circuit breaker и retry
// с учетом ThrottleError. Это транспортная надежность — бизнес-лимиты
// тенанта живут отдельно, в internal/ratelimit.
type ReliabilityWrapper struct {
	next    ActionExecutor
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// CBSettings — настройки предохранителя из конфига.
type CBSettings struct {
	MaxRequests int
	Interval    time.Duration
	Timeout     time.Duration
}

func NewReliabilityWrapper(next ActionExecutor, settings CBSettings) *ReliabilityWrapper {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "action-executor",
		MaxRequests: uint32(settings.MaxRequests),
		Interval:    settings.Interval,
		Timeout:     settings.Timeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
	})

	// Щадящий темп к внешнему исполнителю: 10 rps, burst 5
	limiter := rate.NewLimiter(rate.Limit(10), 5)

	return &ReliabilityWrapper{
		next:    next,
		cb:      cb,
		limiter: limiter,
	}
}

func (w *ReliabilityWrapper) Execute(ctx context.Context, action domain.PlannedAction) (domain.ActionResult, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return domain.ActionResult{}, fmt.Errorf("executor rate limit: %w", err)
	}

	var final domain.ActionResult

	// 2. Circuit Breaker
	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если исполнитель вернул ThrottleError (считал Retry-After)
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// Иначе (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			var callErr error
			final, callErr = w.next.Execute(tCtx, action)
			return callErr
		})

		return final, retryErr
	})

	if err != nil {
		return domain.ActionResult{}, err
	}

	return cbResult.(domain.ActionResult), nil
}
