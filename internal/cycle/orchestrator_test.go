package cycle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/audit"
	"github.com/xela07ax/tenant-agent-core/internal/domain"
	"github.com/xela07ax/tenant-agent-core/internal/lock"
)

// --- фейки ---

type memConfigs struct {
	cfg domain.AgentConfig
}

func (m *memConfigs) GetAgentConfig(_ context.Context, tenantID string) (domain.AgentConfig, error) {
	cfg := m.cfg
	cfg.TenantID = tenantID
	return cfg, nil
}

type memEngagement struct {
	mu      sync.Mutex
	clocks  map[string]domain.EngagementClock // contactID -> clock
	nowFunc func() time.Time
	failOn  string // contactID, на котором RecordTouch падает
}

func newMemEngagement(now func() time.Time) *memEngagement {
	return &memEngagement{clocks: make(map[string]domain.EngagementClock), nowFunc: now}
}

func (m *memEngagement) addOverdue(tenantID, contactID string, daysOverdue int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clocks[contactID] = domain.EngagementClock{
		TenantID:     tenantID,
		ContactID:    contactID,
		LastTouchAt:  m.nowFunc().AddDate(0, 0, -(21 + daysOverdue)),
		IntervalDays: 21,
	}
}

func (m *memEngagement) Violations(_ context.Context, _ string) ([]domain.EngagementViolation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	out := make([]domain.EngagementViolation, 0)
	for _, c := range m.clocks {
		if c.IsCompliant(now) {
			continue
		}
		out = append(out, domain.EngagementViolation{
			Clock:         c,
			DaysOverdue:   c.DaysOverdue(now),
			PriorityScore: c.PriorityScore(now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriorityScore != out[j].PriorityScore {
			return out[i].PriorityScore > out[j].PriorityScore
		}
		return out[i].Clock.ContactID < out[j].Clock.ContactID
	})
	return out, nil
}

func (m *memEngagement) Stats(_ context.Context, _ string) (domain.EngagementStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	st := domain.EngagementStats{TotalContacts: len(m.clocks)}
	for _, c := range m.clocks {
		if c.IsCompliant(now) {
			st.CompliantContacts++
		}
	}
	if st.TotalContacts > 0 {
		st.ComplianceRate = float64(st.CompliantContacts) / float64(st.TotalContacts)
	}
	return st, nil
}

func (m *memEngagement) RecordTouch(_ context.Context, tenantID, contactID string, touch domain.TouchType, by string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == contactID {
		return errors.New("storage unavailable")
	}
	m.clocks[contactID] = domain.EngagementClock{
		TenantID:     tenantID,
		ContactID:    contactID,
		LastTouchAt:  at,
		LastTouchBy:  by,
		LastTouch:    touch,
		IntervalDays: 21,
	}
	return nil
}

type memExceptions struct {
	items []domain.ValidationException
}

func (m *memExceptions) UnresolvedExceptions(_ context.Context, _ string) ([]domain.ValidationException, error) {
	return m.items, nil
}

type okExecutor struct {
	mu       sync.Mutex
	executed []domain.PlannedAction
}

func (e *okExecutor) Execute(_ context.Context, action domain.PlannedAction) (domain.ActionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, action)
	outcome := domain.OutcomeSystemExecuted
	if action.Category == domain.CategoryTask {
		outcome = domain.OutcomeHumanCreated
	}
	return domain.ActionResult{ActionID: action.ID, Outcome: outcome, ExecutedAt: time.Now()}, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []audit.ActionEvent
}

func (a *memAudit) Log(event audit.ActionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

type memRuns struct {
	mu   sync.Mutex
	runs map[string][]domain.CycleRun // tenantID -> runs
}

func newMemRuns() *memRuns { return &memRuns{runs: make(map[string][]domain.CycleRun)} }

func (r *memRuns) LastCycleNumber(_ context.Context, tenantID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.runs[tenantID])), nil
}

func (r *memRuns) InsertRun(_ context.Context, run domain.CycleRun) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.CycleNumber = int64(len(r.runs[run.TenantID])) + 1
	r.runs[run.TenantID] = append(r.runs[run.TenantID], run)
	return run.CycleNumber, nil
}

type memAlerts struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (a *memAlerts) Record(_ context.Context, alert domain.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

type unlimitedRate struct{}

func (unlimitedRate) Check(_ context.Context, _ string, _ domain.ActionCategory, max int) (domain.RateLimitDecision, error) {
	return domain.RateLimitDecision{Allowed: true, MaxAllowed: int64(max)}, nil
}

type cappedRate struct {
	mu     sync.Mutex
	counts map[domain.ActionCategory]int64
}

func (c *cappedRate) Check(_ context.Context, _ string, cat domain.ActionCategory, max int) (domain.RateLimitDecision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[domain.ActionCategory]int64)
	}
	c.counts[cat]++
	if max <= 0 {
		return domain.RateLimitDecision{Allowed: true}, nil
	}
	return domain.RateLimitDecision{
		Allowed:      c.counts[cat] <= int64(max),
		CurrentCount: c.counts[cat],
		MaxAllowed:   int64(max),
	}, nil
}

// --- сборка ---

type fixture struct {
	orch    *Orchestrator
	configs *memConfigs
	eng     *memEngagement
	exc     *memExceptions
	exec    *okExecutor
	auditL  *memAudit
	runs    *memRuns
	alerts  *memAlerts
	locks   *lock.MemoryStore
}

func newFixture(t *testing.T, rate RateChecker) *fixture {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) }

	f := &fixture{
		configs: &memConfigs{cfg: domain.AgentConfig{
			GlobalEnabled: true,
			TenantEnabled: true,
			MaxPerHour:    map[domain.ActionCategory]int{},
		}},
		eng:    newMemEngagement(now),
		exc:    &memExceptions{},
		exec:   &okExecutor{},
		auditL: &memAudit{},
		runs:   newMemRuns(),
		alerts: &memAlerts{},
		locks:  lock.NewMemoryStore(),
	}
	if rate == nil {
		rate = unlimitedRate{}
	}
	f.orch = NewOrchestrator(
		f.configs, f.locks, rate, f.eng, f.exc, f.exec,
		f.auditL, f.runs, f.alerts,
		NewMetrics(nil), zap.NewNop(), time.Minute,
	)
	return f
}

// --- тесты ---

func TestRunCycleEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	f.eng.addOverdue("t-1", "c-bravo", 5)
	f.eng.addOverdue("t-1", "c-alpha", 30)
	f.eng.addOverdue("t-1", "c-zulu", 5)
	f.exc.items = []domain.ValidationException{
		{OrderID: "ord-1", Type: domain.ExceptionPricing, Severity: domain.SeverityCritical, Message: "fee is zero"},
		{OrderID: "ord-2", Type: domain.ExceptionRequirements, Severity: domain.SeverityWarning, Message: "missing contact"},
	}

	run, err := f.orch.RunCycle(context.Background(), "t-1")
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, domain.CycleDone, run.Status)
	assert.Equal(t, int64(1), run.CycleNumber)
	assert.Equal(t, 3, run.Plan.ViolationsSeen)
	assert.Equal(t, 2, run.Plan.ExceptionsSeen)
	assert.False(t, run.Plan.GoalsOnTrack)

	// 3 касания + 2 follow-up + 1 research
	require.Len(t, run.Plan.ActionQueue, 6)

	// Очередь: high перед medium перед low, FIFO внутри приоритета
	q := run.Plan.ActionQueue
	assert.Equal(t, "c-alpha", q[0].ContactID) // максимальная просрочка
	assert.Equal(t, "c-bravo", q[1].ContactID) // тай-брейк по contact_id
	assert.Equal(t, "c-zulu", q[2].ContactID)
	assert.Equal(t, "ord-1", q[3].OrderID) // critical -> high
	assert.Equal(t, "ord-2", q[4].OrderID) // warning -> medium
	assert.Equal(t, domain.CategoryResearch, q[5].Category)

	// Research заблокирован policy (есть нарушения), остальное выполнено
	assert.Equal(t, 5, run.Act.Executed)
	assert.Equal(t, 1, run.Act.Blocked)
	assert.Equal(t, 1, run.Act.BlockReasons[string(domain.PolicyResearchGate)])

	// REACT записал касания по всем трем контактам и закрыл нарушения
	assert.Equal(t, 3, run.React.TouchesRecorded)
	require.Len(t, run.React.MetricDeltas, 2)
	assert.Equal(t, float64(3), run.React.MetricDeltas[0].Before)
	assert.Equal(t, float64(0), run.React.MetricDeltas[0].After)

	require.NotNil(t, run.Reflect)
	assert.NotEmpty(t, run.Reflect.Summary)
	assert.Equal(t, len(q), run.Metrics.ActionsPlanned)

	// Каждое действие очереди попало в аудит
	assert.Len(t, f.auditL.events, len(q))

	// Lock снят
	ok, err := f.locks.Acquire(context.Background(), "t-1", domain.LockCycle, "other", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunCycleNumbersIncrease(t *testing.T) {
	f := newFixture(t, nil)

	for want := int64(1); want <= 3; want++ {
		run, err := f.orch.RunCycle(context.Background(), "t-1")
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, want, run.CycleNumber)
	}
}

func TestRunCycleDisabledTenant(t *testing.T) {
	f := newFixture(t, nil)
	f.configs.cfg.TenantEnabled = false

	run, err := f.orch.RunCycle(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Nil(t, run)

	// Ни записи о прогоне, ни следа от лока
	n, err := f.runs.LastCycleNumber(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunCycleLockBusy(t *testing.T) {
	f := newFixture(t, nil)
	ok, err := f.locks.Acquire(context.Background(), "t-1", domain.LockCycle, "someone-else", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	run, err := f.orch.RunCycle(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Nil(t, run)

	n, err := f.runs.LastCycleNumber(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunCycleRateLimitExhaustsCategory(t *testing.T) {
	f := newFixture(t, &cappedRate{})
	f.configs.cfg.MaxPerHour = map[domain.ActionCategory]int{domain.CategoryEmail: 2}
	for i := 0; i < 5; i++ {
		f.eng.addOverdue("t-1", "c-"+string(rune('a'+i)), 10)
	}

	run, err := f.orch.RunCycle(context.Background(), "t-1")
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, domain.CycleDone, run.Status)
	assert.Equal(t, 2, run.Act.Executed)
	// 3-е письмо пробило лимит, 4-е и 5-е срезаны spam guardrail'ом
	// по уже известному исчерпанию категории
	blocked := run.Act.BlockReasons["rate_limit"] + run.Act.BlockReasons[string(domain.PolicySpamGuardrail)]
	assert.Equal(t, 3, blocked)
	require.NotNil(t, run.Reflect)
	assert.NotEmpty(t, run.Reflect.BlockHistogram)
}

func TestRunCycleFailureReleasesLockAndAlerts(t *testing.T) {
	f := newFixture(t, nil)
	f.eng.addOverdue("t-1", "c-broken", 10)
	f.eng.failOn = "c-broken" // REACT упадет на RecordTouch

	run, err := f.orch.RunCycle(context.Background(), "t-1")
	require.NoError(t, err) // прогон состоялся, ошибка зафиксирована в записи
	require.NotNil(t, run)
	assert.Equal(t, domain.CycleFailed, run.Status)
	assert.Contains(t, run.Error, "react")

	require.Len(t, f.alerts.alerts, 1)
	assert.Equal(t, domain.AlertCycleFailed, f.alerts.alerts[0].Kind)

	// FAILED-запись тоже легла и номер не переиспользуется
	n, err := f.runs.LastCycleNumber(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := f.locks.Acquire(context.Background(), "t-1", domain.LockCycle, "other", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildQueueDeterministic(t *testing.T) {
	violations := []domain.EngagementViolation{
		{Clock: domain.EngagementClock{ContactID: "c-1"}, DaysOverdue: 40, PriorityScore: 40},
		{Clock: domain.EngagementClock{ContactID: "c-2"}, DaysOverdue: 40, PriorityScore: 40},
	}
	exceptions := []domain.ValidationException{
		{OrderID: "o-1", Severity: domain.SeverityError},
		{OrderID: "o-2", Severity: domain.SeverityInfo},
	}

	first := buildQueue("t-1", violations, exceptions, false)
	for i := 0; i < 5; i++ {
		got := buildQueue("t-1", violations, exceptions, false)
		require.Len(t, got, len(first))
		for j := range got {
			assert.Equal(t, first[j].Category, got[j].Category, "position %d", j)
			assert.Equal(t, first[j].ContactID, got[j].ContactID, "position %d", j)
			assert.Equal(t, first[j].OrderID, got[j].OrderID, "position %d", j)
		}
	}

	// high (2 касания + o-1) -> medium (o-2) -> low (research)
	assert.Equal(t, domain.PriorityHigh, first[0].Priority)
	assert.Equal(t, "o-1", first[2].OrderID)
	assert.Equal(t, "o-2", first[3].OrderID)
	assert.Equal(t, domain.CategoryResearch, first[4].Category)
}
