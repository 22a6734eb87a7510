package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
	"github.com/xela07ax/tenant-agent-core/internal/infra"
)

// Counter — атомарный increment-and-read по ключу окна.
// Это единственный жесткий контракт к хранилищу: значение в окне
// монотонно не убывает и инкремент конкурентно-безопасен.
type Counter interface {
	Incr(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// AlertSink — куда складывать алерты о превышении.
type AlertSink interface {
	Record(ctx context.Context, alert domain.Alert) error
}

// Limiter — fixed-window лимитер per (tenant, category).
// На отказе единственный side effect — алерт: само действие
// вызывающая сторона выполнять не должна.
type Limiter struct {
	counter  Counter
	alerts   AlertSink
	logger   *zap.Logger
	breaches *prometheus.CounterVec
	window   time.Duration
	now      func() time.Time
}

func NewLimiter(counter Counter, alerts AlertSink, logger *zap.Logger, breaches *prometheus.CounterVec) *Limiter {
	return &Limiter{
		counter:  counter,
		alerts:   alerts,
		logger:   logger.Named("ratelimit"),
		breaches: breaches,
		window:   time.Hour,
		now:      time.Now,
	}
}

// WithWindow меняет длину окна (дневные лимиты и тесты).
func (l *Limiter) WithWindow(w time.Duration) *Limiter {
	clone := *l
	clone.window = w
	return &clone
}

// SetClock подменяет источник времени (тесты границ окна).
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Check атомарно инкрементирует счетчик окна и решает, разрешено ли действие.
// max <= 0 трактуется как «лимит не настроен» — пропускаем без счета.
func (l *Limiter) Check(ctx context.Context, tenantID string, category domain.ActionCategory, max int) (domain.RateLimitDecision, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	windowEnd := windowStart.Add(l.window)

	if max <= 0 {
		return domain.RateLimitDecision{
			Allowed:     true,
			MaxAllowed:  0,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
		}, nil
	}

	key := infra.RateLimitKey(tenantID, string(category), windowStart.Unix())
	// Запас к expiry, чтобы ключ гарантированно пережил границу окна
	count, err := l.counter.Incr(ctx, key, l.window+time.Minute)
	if err != nil {
		return domain.RateLimitDecision{}, err
	}

	decision := domain.RateLimitDecision{
		Allowed:      count <= int64(max),
		CurrentCount: count,
		MaxAllowed:   int64(max),
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
	}

	if !decision.Allowed {
		l.onBreach(ctx, tenantID, category, decision)
	}
	return decision, nil
}

func (l *Limiter) onBreach(ctx context.Context, tenantID string, category domain.ActionCategory, d domain.RateLimitDecision) {
	if l.breaches != nil {
		l.breaches.WithLabelValues(tenantID, string(category)).Inc()
	}

	l.logger.Warn("rate limit exceeded",
		zap.String("tenant_id", tenantID),
		zap.String("category", string(category)),
		zap.Int64("count", d.CurrentCount),
		zap.Int64("max", d.MaxAllowed),
	)

	if l.alerts == nil {
		return
	}
	alert := domain.Alert{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Kind:     domain.AlertRateLimitExceeded,
		Severity: domain.SeverityWarning,
		Message:  "Rate limit exceeded for category " + string(category),
		Details: map[string]interface{}{
			"category":     string(category),
			"count":        d.CurrentCount,
			"max_allowed":  d.MaxAllowed,
			"window_start": d.WindowStart,
			"window_end":   d.WindowEnd,
		},
		CreatedAt: l.now(),
	}
	if err := l.alerts.Record(ctx, alert); err != nil {
		// Алерт — best effort: не валим вызывающего из-за observability
		l.logger.Error("failed to record rate limit alert", zap.Error(err))
	}
}
