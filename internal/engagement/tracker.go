package engagement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// ClockRepo — хранилище engagement-часов. Часы не удаляются:
// новое касание лишь замещает прошлое (upsert).
type ClockRepo interface {
	UpsertClock(ctx context.Context, clock domain.EngagementClock) error
	ListClocks(ctx context.Context, tenantID string) ([]domain.EngagementClock, error)
}

type Tracker struct {
	repo            ClockRepo
	logger          *zap.Logger
	defaultInterval int // дней
	now             func() time.Time
}

func NewTracker(repo ClockRepo, logger *zap.Logger, defaultIntervalDays int) *Tracker {
	if defaultIntervalDays <= 0 {
		defaultIntervalDays = 21
	}
	return &Tracker{
		repo:            repo,
		logger:          logger.Named("engagement"),
		defaultInterval: defaultIntervalDays,
		now:             time.Now,
	}
}

// SetClock подменяет источник времени (тесты).
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// RecordTouch сбрасывает часы контакта: lastTouch* обновляются,
// nextTouchDue пересчитывается от at.
func (t *Tracker) RecordTouch(ctx context.Context, tenantID, contactID string, touch domain.TouchType, by string, at time.Time) error {
	clock := domain.EngagementClock{
		TenantID:     tenantID,
		ContactID:    contactID,
		LastTouchAt:  at,
		LastTouchBy:  by,
		LastTouch:    touch,
		IntervalDays: t.defaultInterval,
	}
	if err := t.repo.UpsertClock(ctx, clock); err != nil {
		return fmt.Errorf("engagement: record touch for %s: %w", contactID, err)
	}

	t.logger.Debug("touch recorded",
		zap.String("tenant_id", tenantID),
		zap.String("contact_id", contactID),
		zap.String("type", string(touch)),
	)
	return nil
}

// Violations возвращает все просроченные часы тенанта, отсортированные
// по убыванию priority score. Тай-брейк — contact_id по возрастанию:
// порядок обязан быть детерминированным, от него зависит очередь PLAN.
func (t *Tracker) Violations(ctx context.Context, tenantID string) ([]domain.EngagementViolation, error) {
	clocks, err := t.repo.ListClocks(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("engagement: list clocks: %w", err)
	}

	now := t.now()
	violations := make([]domain.EngagementViolation, 0)
	for _, c := range clocks {
		if c.IsCompliant(now) {
			continue
		}
		violations = append(violations, domain.EngagementViolation{
			Clock:         c,
			DaysOverdue:   c.DaysOverdue(now),
			PriorityScore: c.PriorityScore(now),
		})
	}

	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].PriorityScore != violations[j].PriorityScore {
			return violations[i].PriorityScore > violations[j].PriorityScore
		}
		return violations[i].Clock.ContactID < violations[j].Clock.ContactID
	})
	return violations, nil
}

// Stats — compliance rate по всем контактам и средняя просрочка
// только по нарушителям.
func (t *Tracker) Stats(ctx context.Context, tenantID string) (domain.EngagementStats, error) {
	clocks, err := t.repo.ListClocks(ctx, tenantID)
	if err != nil {
		return domain.EngagementStats{}, fmt.Errorf("engagement: list clocks: %w", err)
	}

	now := t.now()
	stats := domain.EngagementStats{TotalContacts: len(clocks)}

	var overdueSum int
	var violators int
	for _, c := range clocks {
		if c.IsCompliant(now) {
			stats.CompliantContacts++
			continue
		}
		violators++
		overdueSum += c.DaysOverdue(now)
	}

	if stats.TotalContacts > 0 {
		stats.ComplianceRate = float64(stats.CompliantContacts) / float64(stats.TotalContacts)
	}
	if violators > 0 {
		stats.AverageDaysOverdue = float64(overdueSum) / float64(violators)
	}
	return stats, nil
}
