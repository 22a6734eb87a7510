package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// ConfigSource — снимок конфигурации тенанта.
type ConfigSource interface {
	GetAgentConfig(ctx context.Context, tenantID string) (domain.AgentConfig, error)
}

// RateChecker — допуск по лимиту категории.
type RateChecker interface {
	Check(ctx context.Context, tenantID string, category domain.ActionCategory, max int) (domain.RateLimitDecision, error)
}

// ExecutionRepo — персист записей об исполнениях.
type ExecutionRepo interface {
	SaveExecution(ctx context.Context, e domain.SandboxExecution) error
}

// SandboxRequest — заявка на исполнение шаблона.
type SandboxRequest struct {
	TemplateName string                 `json:"template_name"`
	InputParams  map[string]interface{} `json:"input_params,omitempty"`
	InputFiles   []string               `json:"input_file_refs,omitempty"`
}

// ExecutionResult — исход заявки. Ошибки исполнения никогда не
// пробрасываются выше executor'а — только как ErrorMessage внутри записи.
type ExecutionResult struct {
	Success   bool                    `json:"success"`
	Execution domain.SandboxExecution `json:"execution"`
}

type Executor struct {
	configs   ConfigSource
	limiter   RateChecker
	registry  Registry
	repo      ExecutionRepo
	logger    *zap.Logger
	durations *prometheus.HistogramVec
	now       func() time.Time
}

func NewExecutor(configs ConfigSource, limiter RateChecker, registry Registry, repo ExecutionRepo, logger *zap.Logger, durations *prometheus.HistogramVec) *Executor {
	return &Executor{
		configs:   configs,
		limiter:   limiter,
		registry:  registry,
		repo:      repo,
		logger:    logger.Named("sandbox"),
		durations: durations,
		now:       time.Now,
	}
}

// Execute прогоняет заявку: конфиг → rate limit → реестр → исполнение
// под лимитами. Порядок жесткий: при исчерпании лимита реестр даже
// не открывается, шаблон не вызывается.
func (e *Executor) Execute(ctx context.Context, tenantID string, req SandboxRequest) ExecutionResult {
	exec := domain.SandboxExecution{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		TemplateName: req.TemplateName,
		InputParams:  req.InputParams,
		InputFiles:   req.InputFiles,
		Status:       domain.SandboxPending,
		StartedAt:    e.now(),
	}

	cfg, err := e.configs.GetAgentConfig(ctx, tenantID)
	if err != nil {
		return e.finish(ctx, exec, domain.SandboxFailed, fmt.Sprintf("config load failed: %v", err))
	}

	decision, err := e.limiter.Check(ctx, tenantID, domain.CategorySandboxJob, cfg.MaxSandboxJobsPerHour)
	if err != nil {
		return e.finish(ctx, exec, domain.SandboxFailed, fmt.Sprintf("rate limit check failed: %v", err))
	}
	if !decision.Allowed {
		// Алерт rate_limit_exceeded уже поднят лимитером
		return e.finish(ctx, exec, domain.SandboxFailed,
			fmt.Sprintf("Rate limit exceeded: %d/%d sandbox jobs in window", decision.CurrentCount, decision.MaxAllowed))
	}

	meta, fn, ok := e.registry.Template(req.TemplateName)
	if !ok {
		return e.finish(ctx, exec, domain.SandboxFailed, fmt.Sprintf("Template not found: %s", req.TemplateName))
	}

	if err := ValidateParams(meta, req.InputParams); err != nil {
		return e.finish(ctx, exec, domain.SandboxFailed, fmt.Sprintf("invalid parameters: %v", err))
	}

	_ = exec.Transition(domain.SandboxRunning)
	return e.run(ctx, exec, meta, fn)
}

// run исполняет тело под таймаутом и лимитом памяти шаблона.
func (e *Executor) run(ctx context.Context, exec domain.SandboxExecution, meta domain.ScriptTemplate, fn TemplateFunc) ExecutionResult {
	timeout := time.Duration(meta.Limits.MaxTimeSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		out *TemplateOutput
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := fn(runCtx, exec.InputParams, exec.InputFiles)
		done <- outcome{out, err}
	}()

	select {
	case <-runCtx.Done():
		// Частичный результат не засчитывается: timeout терминален
		return e.finish(ctx, exec, domain.SandboxTimeout,
			fmt.Sprintf("execution exceeded %ds limit", meta.Limits.MaxTimeSeconds))

	case res := <-done:
		if res.err != nil {
			return e.finish(ctx, exec, domain.SandboxFailed, res.err.Error())
		}

		exec.MemoryUsedMb = res.out.MemoryUsedMb
		if meta.Limits.MaxMemoryMb > 0 && res.out.MemoryUsedMb > meta.Limits.MaxMemoryMb {
			// Превышение памяти терминально, вывод не засчитывается
			return e.finish(ctx, exec, domain.SandboxKilled,
				fmt.Sprintf("memory limit exceeded: used %.1fMb of %.1fMb", res.out.MemoryUsedMb, meta.Limits.MaxMemoryMb))
		}

		exec.OutputData = res.out.Data
		exec.OutputFiles = res.out.FileRefs
		return e.finish(ctx, exec, domain.SandboxCompleted, "")
	}
}

// finish фиксирует терминальный статус, сохраняет запись и метрики.
func (e *Executor) finish(ctx context.Context, exec domain.SandboxExecution, status domain.SandboxStatus, errMsg string) ExecutionResult {
	_ = exec.Transition(status)
	exec.ErrorMessage = errMsg
	exec.EndedAt = e.now()
	exec.DurationMs = exec.EndedAt.Sub(exec.StartedAt).Milliseconds()

	if e.durations != nil {
		e.durations.WithLabelValues(exec.TemplateName, string(status)).Observe(float64(exec.DurationMs) / 1000)
	}

	if e.repo != nil {
		if err := e.repo.SaveExecution(ctx, exec); err != nil {
			e.logger.Error("failed to persist sandbox execution",
				zap.String("execution_id", exec.ID), zap.Error(err))
		}
	}

	if status != domain.SandboxCompleted {
		e.logger.Warn("sandbox job did not complete",
			zap.String("tenant_id", exec.TenantID),
			zap.String("template", exec.TemplateName),
			zap.String("status", string(status)),
			zap.String("error", errMsg),
		)
	}

	return ExecutionResult{
		Success:   status == domain.SandboxCompleted,
		Execution: exec,
	}
}
