package cycle

/*
Оркестратор автономного цикла Plan→Act→React→Reflect по одному тенанту.

Железные правила:
  - выключенный тенант не берет lock и не оставляет run record;
  - занятый lock — тихий пропуск, не ошибка;
  - heartbeat продлевает lock каждые ttl/3; потеря лока обрывает
    исполнение хвоста очереди (Aborted), уже выполненное не откатывается;
  - одна граница recover вокруг всех фаз: паника = FAILED run + алерт,
    планировщик не падает никогда;
  - lock снимается в финальном defer при любом исходе.
*/

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/audit"
	"github.com/xela07ax/tenant-agent-core/internal/connectors"
	"github.com/xela07ax/tenant-agent-core/internal/domain"
	"github.com/xela07ax/tenant-agent-core/internal/lock"
	"github.com/xela07ax/tenant-agent-core/internal/policy"
)

// Порог compliance rate, ниже которого цели тенанта считаются off-track.
const goalsOnTrackThreshold = 0.8

// ConfigSource — авторитетный снимок конфигурации тенанта, один на цикл.
type ConfigSource interface {
	GetAgentConfig(ctx context.Context, tenantID string) (domain.AgentConfig, error)
}

// CycleRepo — персист прогонов. InsertRun назначает cycle_number
// атомарно (MAX+1 по тенанту) и возвращает его.
type CycleRepo interface {
	LastCycleNumber(ctx context.Context, tenantID string) (int64, error)
	InsertRun(ctx context.Context, run domain.CycleRun) (int64, error)
}

// RateChecker — почасовой лимитер (см. internal/ratelimit).
type RateChecker interface {
	Check(ctx context.Context, tenantID string, category domain.ActionCategory, max int) (domain.RateLimitDecision, error)
}

// EngagementSource — engagement-часы тенанта для фаз PLAN и REACT.
type EngagementSource interface {
	Violations(ctx context.Context, tenantID string) ([]domain.EngagementViolation, error)
	Stats(ctx context.Context, tenantID string) (domain.EngagementStats, error)
	RecordTouch(ctx context.Context, tenantID, contactID string, touch domain.TouchType, by string, at time.Time) error
}

// ExceptionSource — очередь нерешенных проблем валидации заказов.
type ExceptionSource interface {
	UnresolvedExceptions(ctx context.Context, tenantID string) ([]domain.ValidationException, error)
}

// AuditLog — неблокирующая запись событий аудита.
type AuditLog interface {
	Log(event audit.ActionEvent)
}

// AlertSink — куда складывать алерты об упавших циклах.
type AlertSink interface {
	Record(ctx context.Context, alert domain.Alert) error
}

type Orchestrator struct {
	configs    ConfigSource
	locks      lock.Store
	limiter    RateChecker
	engagement EngagementSource
	exceptions ExceptionSource
	executor   connectors.ActionExecutor
	auditLog   AuditLog
	runs       CycleRepo
	alerts     AlertSink
	metrics    *Metrics
	logger     *zap.Logger

	holderID string
	lockTTL  time.Duration
	now      func() time.Time
}

func NewOrchestrator(
	configs ConfigSource,
	locks lock.Store,
	limiter RateChecker,
	eng EngagementSource,
	exc ExceptionSource,
	executor connectors.ActionExecutor,
	auditLog AuditLog,
	runs CycleRepo,
	alerts AlertSink,
	metrics *Metrics,
	logger *zap.Logger,
	lockTTL time.Duration,
) *Orchestrator {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &Orchestrator{
		configs:    configs,
		locks:      locks,
		limiter:    limiter,
		engagement: eng,
		exceptions: exc,
		executor:   executor,
		auditLog:   auditLog,
		runs:       runs,
		alerts:     alerts,
		metrics:    metrics,
		logger:     logger.Named("cycle"),
		holderID:   uuid.New().String(),
		lockTTL:    lockTTL,
		now:        time.Now,
	}
}

// SetClock подменяет источник времени (тесты).
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// HolderID — идентификатор инстанса как держателя локов.
func (o *Orchestrator) HolderID() string { return o.holderID }

// RunCycle прогоняет один полный цикл тенанта. (nil, nil) — цикл осознанно
// не состоялся (тенант выключен или lock занят): записи о прогоне нет.
func (o *Orchestrator) RunCycle(ctx context.Context, tenantID string) (*domain.CycleRun, error) {
	log := o.logger.With(zap.String("tenant_id", tenantID))

	cfg, err := o.configs.GetAgentConfig(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("cycle: load config for %s: %w", tenantID, err)
	}
	if !cfg.Enabled() {
		log.Debug("tenant disabled, cycle skipped")
		o.metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	ok, err := o.locks.Acquire(ctx, tenantID, domain.LockCycle, o.holderID, o.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("cycle: acquire lock for %s: %w", tenantID, err)
	}
	if !ok {
		log.Debug("cycle lock is held elsewhere, skipping")
		o.metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}
	// Release обязан пережить отмену родительского контекста
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := o.locks.Release(rctx, tenantID, domain.LockCycle, o.holderID); rerr != nil {
			log.Warn("failed to release cycle lock", zap.Error(rerr))
		}
	}()

	var lockLost atomic.Bool
	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	go o.heartbeat(hbCtx, tenantID, &lockLost, log)

	last, err := o.runs.LastCycleNumber(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("cycle: last cycle number for %s: %w", tenantID, err)
	}

	started := o.now()
	run := domain.CycleRun{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		CycleNumber: last + 1, // предварительный; InsertRun назначит финальный
		Status:      domain.CycleRunning,
		StartedAt:   started,
	}
	log = log.With(zap.Int64("cycle", run.CycleNumber))
	log.Info("cycle started")

	// Единственная граница recover вокруг всех четырех фаз
	phaseErr := o.runPhases(ctx, cfg, &run, &lockLost, log)

	run.EndedAt = o.now()
	run.Metrics.DurationMs = run.EndedAt.Sub(started).Milliseconds()

	if phaseErr != nil {
		run.Status = domain.CycleFailed
		run.Error = phaseErr.Error()
		o.onFailure(ctx, tenantID, run.CycleNumber, phaseErr, log)
	} else {
		run.Status = domain.CycleDone
	}

	assigned, err := o.runs.InsertRun(ctx, run)
	if err != nil {
		// Прогон состоялся, но запись не легла: это уже ошибка цикла
		log.Error("failed to persist cycle run", zap.Error(err))
		return nil, fmt.Errorf("cycle: insert run for %s: %w", tenantID, err)
	}
	run.CycleNumber = assigned

	o.metrics.CyclesTotal.WithLabelValues(string(run.Status)).Inc()
	o.metrics.CycleDuration.WithLabelValues(tenantID, string(run.Status)).
		Observe(run.EndedAt.Sub(started).Seconds())

	log.Info("cycle finished",
		zap.String("status", string(run.Status)),
		zap.Int("planned", run.Metrics.ActionsPlanned),
		zap.Int("executed", run.Metrics.ActionsExecuted),
		zap.Int("blocked", run.Metrics.ActionsBlocked),
		zap.Int64("duration_ms", run.Metrics.DurationMs),
	)
	return &run, nil
}

// runPhases исполняет PLAN→ACT→REACT→REFLECT под одним recover.
func (o *Orchestrator) runPhases(ctx context.Context, cfg domain.AgentConfig, run *domain.CycleRun, lockLost *atomic.Bool, log *zap.Logger) (err error) {
	var phase domain.CyclePhase
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle: panic in phase %s: %v", phase, r)
		}
	}()

	phase = domain.PhasePlan
	plan, violations, err := o.plan(ctx, run.TenantID)
	if err != nil {
		return fmt.Errorf("cycle: phase %s: %w", phase, err)
	}
	run.Plan = plan
	run.Metrics.ActionsPlanned = len(plan.ActionQueue)

	phase = domain.PhaseAct
	act, executed := o.act(ctx, cfg, run, plan, lockLost, log)
	run.Act = act
	run.Metrics.ActionsExecuted = act.Executed + act.HumanTasksCreated
	run.Metrics.ActionsBlocked = act.Blocked

	phase = domain.PhaseReact
	react, err := o.react(ctx, run.TenantID, executed, violations, log)
	if err != nil {
		return fmt.Errorf("cycle: phase %s: %w", phase, err)
	}
	run.React = react

	phase = domain.PhaseReflect
	reflect := o.reflect(plan, act, react)
	run.Reflect = &reflect
	return nil
}

// plan строит детерминированную очередь действий. Никаких side effects.
func (o *Orchestrator) plan(ctx context.Context, tenantID string) (domain.PlanOutput, []domain.EngagementViolation, error) {
	violations, err := o.engagement.Violations(ctx, tenantID)
	if err != nil {
		return domain.PlanOutput{}, nil, err
	}
	exceptions, err := o.exceptions.UnresolvedExceptions(ctx, tenantID)
	if err != nil {
		return domain.PlanOutput{}, nil, err
	}
	stats, err := o.engagement.Stats(ctx, tenantID)
	if err != nil {
		return domain.PlanOutput{}, nil, err
	}
	goalsOnTrack := stats.TotalContacts == 0 || stats.ComplianceRate >= goalsOnTrackThreshold

	queue := buildQueue(tenantID, violations, exceptions, goalsOnTrack)

	return domain.PlanOutput{
		ActionQueue:    queue,
		ViolationsSeen: len(violations),
		ExceptionsSeen: len(exceptions),
		GoalsOnTrack:   goalsOnTrack,
	}, violations, nil
}

// buildQueue — чистый планировщик: нарушения engagement, затем проблемные
// заказы, затем research. Сортировка по приоритету, FIFO внутри приоритета.
func buildQueue(tenantID string, violations []domain.EngagementViolation, exceptions []domain.ValidationException, goalsOnTrack bool) []domain.PlannedAction {
	queue := make([]domain.PlannedAction, 0, len(violations)+len(exceptions)+1)
	seq := 0
	push := func(a domain.PlannedAction) {
		a.ID = uuid.New().String()
		a.TenantID = tenantID
		a.Seq = seq
		seq++
		queue = append(queue, a)
	}

	// Просроченные касания: уже отсортированы по score desc / contact asc
	for _, v := range violations {
		push(domain.PlannedAction{
			Category:  domain.CategoryEmail,
			Priority:  domain.PriorityHigh,
			Reason:    fmt.Sprintf("engagement overdue by %d days", v.DaysOverdue),
			ContactID: v.Clock.ContactID,
			Payload: map[string]interface{}{
				"touch_type":     string(domain.TouchEmail),
				"days_overdue":   v.DaysOverdue,
				"priority_score": v.PriorityScore,
			},
		})
	}

	// Проблемные заказы: критичность определяет приоритет
	for _, e := range exceptions {
		prio := domain.PriorityMedium
		if e.Severity.AtLeast(domain.SeverityError) {
			prio = domain.PriorityHigh
		}
		push(domain.PlannedAction{
			Category: domain.CategoryOrderFollowup,
			Priority: prio,
			Reason:   fmt.Sprintf("unresolved %s exception: %s", e.Type, e.Message),
			OrderID:  e.OrderID,
			Payload: map[string]interface{}{
				"exception_type": string(e.Type),
				"severity":       string(e.Severity),
				"field":          e.Field,
			},
		})
	}

	// Цели не в графике — плановый research. Policy engine сам решит,
	// достаточно ли здоров тенант, чтобы его пропустить.
	if !goalsOnTrack {
		push(domain.PlannedAction{
			Category: domain.CategoryResearch,
			Priority: domain.PriorityLow,
			Reason:   "engagement compliance is below target",
		})
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Priority.Rank() < queue[j].Priority.Rank()
	})
	return queue
}

// act прогоняет очередь через policy → rate limit → исполнителя.
// Возвращает сводку и список успешно выполненных действий для REACT.
func (o *Orchestrator) act(ctx context.Context, cfg domain.AgentConfig, run *domain.CycleRun, plan domain.PlanOutput, lockLost *atomic.Bool, log *zap.Logger) (domain.ActOutput, []domain.PlannedAction) {
	out := domain.ActOutput{BlockReasons: make(map[string]int)}
	executed := make([]domain.PlannedAction, 0, len(plan.ActionQueue))

	// Исчерпанная категория остается исчерпанной до конца цикла
	exhausted := make(map[domain.ActionCategory]bool)

	for _, action := range plan.ActionQueue {
		if lockLost.Load() {
			log.Warn("cycle lock lost, aborting remaining actions",
				zap.Int("remaining", len(plan.ActionQueue)-out.Executed-out.HumanTasksCreated-out.Blocked))
			out.Aborted = true
			break
		}

		started := o.now()
		pctx := buildPolicyContext(action, plan, exhausted[action.Category])

		if res := policy.Check(pctx); !res.Allowed {
			out.Blocked++
			out.BlockReasons[string(res.PolicyType)]++
			o.recordAction(run, action, domain.OutcomeBlocked, res.PolicyType, res.Reason, started)
			continue
		}

		decision, err := o.limiter.Check(ctx, run.TenantID, action.Category, cfg.HourlyLimit(action.Category))
		if err != nil {
			// Недоступный лимитер = действие не выполняем (fail closed)
			out.Blocked++
			out.BlockReasons["rate_limit_unavailable"]++
			o.recordAction(run, action, domain.OutcomeBlocked, domain.PolicyNone, "rate limiter unavailable: "+err.Error(), started)
			continue
		}
		if !decision.Allowed {
			exhausted[action.Category] = true
			out.Blocked++
			out.BlockReasons["rate_limit"]++
			o.recordAction(run, action, domain.OutcomeBlocked, domain.PolicyNone,
				fmt.Sprintf("hourly limit reached (%d/%d)", decision.CurrentCount, decision.MaxAllowed), started)
			continue
		}

		result, err := o.executor.Execute(ctx, action)
		if err != nil {
			out.Blocked++
			out.BlockReasons["executor_error"]++
			o.recordAction(run, action, domain.OutcomeBlocked, domain.PolicyNone, "executor: "+err.Error(), started)
			log.Warn("action execution failed",
				zap.String("action_id", action.ID),
				zap.String("category", string(action.Category)),
				zap.Error(err))
			continue
		}

		switch result.Outcome {
		case domain.OutcomeHumanCreated:
			out.HumanTasksCreated++
		default:
			out.Executed++
		}
		executed = append(executed, action)
		o.recordAction(run, action, result.Outcome, domain.PolicyNone, result.Detail, started)
	}
	return out, executed
}

// buildPolicyContext собирает фактуру для движка: флаги-основания берутся
// из payload действия, состояние тенанта — из результатов PLAN.
func buildPolicyContext(action domain.PlannedAction, plan domain.PlanOutput, categoryExhausted bool) domain.PolicyContext {
	flag := func(key string) bool {
		v, ok := action.Payload[key].(bool)
		return ok && v
	}
	return domain.PolicyContext{
		ActionType: action.Category,
		ActionData: action.Payload,

		ClientRequestedTask: flag("client_requested_task"),
		ComplianceDeadline:  flag("compliance_deadline"),
		SafetyEscalation:    flag("safety_escalation"),

		EngagementViolations: plan.ViolationsSeen,
		GoalsOnTrack:         plan.GoalsOnTrack,
		PipelineHealthy:      plan.ExceptionsSeen == 0,

		RecipientSuppressed: flag("recipient_suppressed"),
		RecipientBounced:    flag("recipient_bounced"),
		RecipientOptedOut:   flag("recipient_opted_out"),

		RateLimitExceeded: categoryExhausted,
	}
}

func (o *Orchestrator) recordAction(run *domain.CycleRun, action domain.PlannedAction, outcome domain.ActionOutcome, ptype domain.PolicyType, reason string, started time.Time) {
	o.metrics.ActionsTotal.WithLabelValues(string(action.Category), string(outcome)).Inc()
	o.auditLog.Log(audit.ActionEvent{
		ID:          uuid.New().String(),
		TenantID:    run.TenantID,
		CycleNumber: run.CycleNumber,
		ActionID:    action.ID,
		Category:    action.Category,
		Priority:    action.Priority,
		Payload:     action.Payload,
		Outcome:     outcome,
		PolicyType:  ptype,
		Reason:      reason,
		Timestamp:   started,
		DurationMs:  o.now().Sub(started).Milliseconds(),
	})
}

// react фиксирует касания по выполненной исходящей коммуникации и
// пересчитывает нарушения для дельт «до/после».
func (o *Orchestrator) react(ctx context.Context, tenantID string, executed []domain.PlannedAction, before []domain.EngagementViolation, log *zap.Logger) (domain.ReactOutput, error) {
	out := domain.ReactOutput{}
	now := o.now()

	for _, a := range executed {
		if a.ContactID == "" || !a.Category.IsOutbound() {
			continue
		}
		if err := o.engagement.RecordTouch(ctx, tenantID, a.ContactID, domain.TouchEmail, "agent:"+o.holderID, now); err != nil {
			return out, err
		}
		out.TouchesRecorded++
	}

	after, err := o.engagement.Violations(ctx, tenantID)
	if err != nil {
		return out, err
	}
	stats, err := o.engagement.Stats(ctx, tenantID)
	if err != nil {
		return out, err
	}

	out.MetricDeltas = []domain.MetricDelta{
		{Name: "engagement_violations", Before: float64(len(before)), After: float64(len(after))},
		{Name: "compliance_rate", Before: complianceBefore(before, stats), After: stats.ComplianceRate},
	}
	return out, nil
}

// complianceBefore восстанавливает rate на момент PLAN из текущего
// числа контактов: сами контакты за цикл не появляются и не исчезают.
func complianceBefore(before []domain.EngagementViolation, now domain.EngagementStats) float64 {
	if now.TotalContacts == 0 {
		return 0
	}
	return float64(now.TotalContacts-len(before)) / float64(now.TotalContacts)
}

// reflect — итоговая сводка без I/O. Уверенность гипотез всегда в [0,1].
func (o *Orchestrator) reflect(plan domain.PlanOutput, act domain.ActOutput, react domain.ReactOutput) domain.ReflectOutput {
	out := domain.ReflectOutput{
		Summary: fmt.Sprintf("planned %d, executed %d, human tasks %d, blocked %d, touches recorded %d",
			len(plan.ActionQueue), act.Executed, act.HumanTasksCreated, act.Blocked, react.TouchesRecorded),
	}
	if len(act.BlockReasons) > 0 {
		out.BlockHistogram = act.BlockReasons
	}

	total := len(plan.ActionQueue)
	if total > 0 && act.BlockReasons["rate_limit"] > 0 {
		out.Hypotheses = append(out.Hypotheses, domain.Hypothesis{
			Text:       "hourly limits are saturated; raising limits or spreading cycles would increase throughput",
			Confidence: clamp01(float64(act.BlockReasons["rate_limit"]) / float64(total)),
		})
	}
	if total > 0 && act.BlockReasons[string(domain.PolicySpamGuardrail)] > 0 {
		out.Hypotheses = append(out.Hypotheses, domain.Hypothesis{
			Text:       "contact list hygiene is degrading: outbound blocked by recipient state",
			Confidence: clamp01(float64(act.BlockReasons[string(domain.PolicySpamGuardrail)]) / float64(total)),
		})
	}
	if act.Aborted {
		out.Hypotheses = append(out.Hypotheses, domain.Hypothesis{
			Text:       "lock was lost mid-cycle; ttl may be too short for the action volume",
			Confidence: 0.9,
		})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// heartbeat продлевает lock каждые ttl/3. Первое же неудачное продление
// взводит lockLost: воскрешать потерянный lock нельзя.
func (o *Orchestrator) heartbeat(ctx context.Context, tenantID string, lockLost *atomic.Bool, log *zap.Logger) {
	ticker := time.NewTicker(o.lockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := o.locks.Extend(ctx, tenantID, domain.LockCycle, o.holderID, o.lockTTL)
			if err != nil {
				log.Warn("lock heartbeat failed", zap.Error(err))
				lockLost.Store(true)
				return
			}
			if !ok {
				log.Warn("cycle lock no longer held by this instance")
				lockLost.Store(true)
				return
			}
		}
	}
}

// onFailure — best effort алерт об упавшем цикле.
func (o *Orchestrator) onFailure(ctx context.Context, tenantID string, cycleNumber int64, cause error, log *zap.Logger) {
	log.Error("cycle failed", zap.Error(cause))
	if o.alerts == nil {
		return
	}
	alert := domain.Alert{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Kind:     domain.AlertCycleFailed,
		Severity: domain.SeverityError,
		Message:  "Cycle failed: " + cause.Error(),
		Details: map[string]interface{}{
			"cycle_number": cycleNumber,
		},
		CreatedAt: o.now(),
	}
	if err := o.alerts.Record(ctx, alert); err != nil {
		log.Error("failed to record cycle alert", zap.Error(err))
	}
}
