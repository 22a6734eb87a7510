package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

type captureSink struct {
	alerts []domain.Alert
}

func (s *captureSink) Record(_ context.Context, a domain.Alert) error {
	s.alerts = append(s.alerts, a)
	return nil
}

func newTestLimiter(sink AlertSink) *Limiter {
	l := NewLimiter(NewMemoryCounter(), sink, zap.NewNop(), nil)
	l.SetClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	})
	return l
}

func TestLimiter_DeniesAfterMax(t *testing.T) {
	sink := &captureSink{}
	l := newTestLimiter(sink)
	ctx := context.Background()

	// 11 инкрементов при max=10: последний уже за пределом
	var last domain.RateLimitDecision
	for i := 0; i < 11; i++ {
		var err error
		last, err = l.Check(ctx, "tenant-1", domain.CategoryEmail, 10)
		require.NoError(t, err)
	}
	assert.False(t, last.Allowed)

	// 12-й вызов: отказ, счетчик не меньше лимита
	d, err := l.Check(ctx, "tenant-1", domain.CategoryEmail, 10)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.GreaterOrEqual(t, d.CurrentCount, d.MaxAllowed)
}

func TestLimiter_BreachRecordsWarningAlert(t *testing.T) {
	sink := &captureSink{}
	l := newTestLimiter(sink)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Check(ctx, "tenant-1", domain.CategoryTask, 2)
		require.NoError(t, err)
	}

	require.Len(t, sink.alerts, 1)
	a := sink.alerts[0]
	assert.Equal(t, domain.AlertRateLimitExceeded, a.Kind)
	assert.Equal(t, domain.SeverityWarning, a.Severity)
	assert.Equal(t, "tenant-1", a.TenantID)
	assert.Equal(t, string(domain.CategoryTask), a.Details["category"])
}

func TestLimiter_CountMonotonicWithinWindow(t *testing.T) {
	l := newTestLimiter(nil)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		d, err := l.Check(ctx, "tenant-1", domain.CategoryEmail, 100)
		require.NoError(t, err)
		assert.Greater(t, d.CurrentCount, prev)
		prev = d.CurrentCount
	}
}

func TestLimiter_WindowRolloverResetsCount(t *testing.T) {
	l := NewLimiter(NewMemoryCounter(), nil, zap.NewNop(), nil)
	now := time.Date(2026, 3, 1, 12, 59, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Check(ctx, "tenant-1", domain.CategoryEmail, 3)
		require.NoError(t, err)
	}
	d, err := l.Check(ctx, "tenant-1", domain.CategoryEmail, 3)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// Новое окно — новый ключ, счет с нуля
	now = now.Add(2 * time.Minute)
	d, err = l.Check(ctx, "tenant-1", domain.CategoryEmail, 3)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.CurrentCount)
}

func TestLimiter_ZeroMaxMeansUnlimited(t *testing.T) {
	l := newTestLimiter(nil)

	d, err := l.Check(context.Background(), "tenant-1", domain.CategoryResearch, 0)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(0), d.CurrentCount)
}

func TestLimiter_TenantsCountedSeparately(t *testing.T) {
	l := newTestLimiter(nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := l.Check(ctx, "tenant-1", domain.CategoryEmail, 2)
		require.NoError(t, err)
	}

	d, err := l.Check(ctx, "tenant-2", domain.CategoryEmail, 2)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.CurrentCount)
}
