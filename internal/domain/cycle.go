package domain

import "time"

// CycleStatus — состояние одного прогона Plan→Act→React→Reflect.
type CycleStatus string

const (
	CycleRunning CycleStatus = "running"
	CycleDone    CycleStatus = "done"
	CycleFailed  CycleStatus = "failed"
)

// CyclePhase — для логов и сообщений об ошибках.
type CyclePhase string

const (
	PhasePlan    CyclePhase = "plan"
	PhaseAct     CyclePhase = "act"
	PhaseReact   CyclePhase = "react"
	PhaseReflect CyclePhase = "reflect"
)

// PlanOutput — результат фазы PLAN: детерминированная очередь действий.
type PlanOutput struct {
	ActionQueue    []PlannedAction `json:"action_queue"`
	ViolationsSeen int             `json:"violations_seen"`
	ExceptionsSeen int             `json:"exceptions_seen"`
	GoalsOnTrack   bool            `json:"goals_on_track"`
}

// ActOutput — результат фазы ACT.
type ActOutput struct {
	Executed          int            `json:"executed"`
	HumanTasksCreated int            `json:"human_tasks_created"`
	Blocked           int            `json:"blocked"`
	BlockReasons      map[string]int `json:"block_reasons,omitempty"`
	Aborted           bool           `json:"aborted"` // lock потерян, хвост очереди не исполнялся
}

// MetricDelta — до/после по одной отслеживаемой метрике.
type MetricDelta struct {
	Name   string  `json:"name"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// ReactOutput — результат фазы REACT.
type ReactOutput struct {
	TouchesRecorded int           `json:"touches_recorded"`
	MetricDeltas    []MetricDelta `json:"metric_deltas,omitempty"`
}

// Hypothesis — предположение фазы REFLECT с уверенностью в [0,1].
type Hypothesis struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ReflectOutput — итоговая сводка цикла.
type ReflectOutput struct {
	Summary        string         `json:"summary"`
	BlockHistogram map[string]int `json:"block_histogram,omitempty"`
	Hypotheses     []Hypothesis   `json:"hypotheses,omitempty"`
}

type CycleMetrics struct {
	ActionsPlanned  int   `json:"actions_planned"`
	ActionsExecuted int   `json:"actions_executed"`
	ActionsBlocked  int   `json:"actions_blocked"`
	DurationMs      int64 `json:"duration_ms"`
}

// CycleRun — immutable запись прогона. Единственный источник правды
// о том, состоялся ли цикл N. CycleNumber строго растет по тенанту
// и никогда не переиспользуется.
type CycleRun struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	CycleNumber int64       `json:"cycle_number"`
	Status      CycleStatus `json:"status"`

	Plan    PlanOutput     `json:"plan"`
	Act     ActOutput      `json:"act"`
	React   ReactOutput    `json:"react"`
	Reflect *ReflectOutput `json:"reflect,omitempty"`

	Metrics CycleMetrics `json:"metrics"`
	Error   string       `json:"error,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
