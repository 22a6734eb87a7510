package scheduler

/*
Планировщик циклов: один тикер на процесс, по тенанту — отдельная
goroutine под семафором. Конкуренция инстансов разруливается не здесь,
а tenant lock'ом внутри RunCycle: планировщику можно тикать везде.
*/

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// TenantLister — список тенантов с включенным агентом.
type TenantLister interface {
	ListActiveTenants(ctx context.Context) ([]string, error)
}

// CycleRunner — запуск одного цикла (см. internal/cycle).
type CycleRunner interface {
	RunCycle(ctx context.Context, tenantID string) (*domain.CycleRun, error)
}

// KillSwitch — мгновенный стоп из RAM-кэша, без похода в БД.
type KillSwitch interface {
	IsDisabled(tenantID string) bool
}

type Scheduler struct {
	tenants    TenantLister
	runner     CycleRunner
	killswitch KillSwitch
	logger     *zap.Logger

	interval      time.Duration
	maxConcurrent int
}

func New(tenants TenantLister, runner CycleRunner, ks KillSwitch, logger *zap.Logger, interval time.Duration, maxConcurrent int) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Scheduler{
		tenants:       tenants,
		runner:        runner,
		killswitch:    ks,
		logger:        logger.Named("scheduler"),
		interval:      interval,
		maxConcurrent: maxConcurrent,
	}
}

// Run блокирует до отмены контекста. Первый тик — сразу при старте.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick запускает циклы всех активных тенантов и дожидается их окончания.
// Пока tick не закончен, следующие тики тикера просто теряются —
// накладывающихся прогонов по вине планировщика не бывает.
func (s *Scheduler) tick(ctx context.Context) {
	ids, err := s.tenants.ListActiveTenants(ctx)
	if err != nil {
		s.logger.Error("failed to list active tenants", zap.Error(err))
		return
	}

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup

	for _, tenantID := range ids {
		if ctx.Err() != nil {
			break
		}
		if s.killswitch != nil && s.killswitch.IsDisabled(tenantID) {
			s.logger.Debug("tenant disabled by kill switch", zap.String("tenant_id", tenantID))
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			// RunCycle сам держит recover вокруг фаз; этот — страховка
			// от паник до захвата лока, чтобы не уронить планировщик
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("cycle panicked outside phase boundary",
						zap.String("tenant_id", id), zap.Any("panic", r))
				}
			}()
			if _, err := s.runner.RunCycle(ctx, id); err != nil {
				s.logger.Error("cycle returned error",
					zap.String("tenant_id", id), zap.Error(err))
			}
		}(tenantID)
	}
	wg.Wait()
}
