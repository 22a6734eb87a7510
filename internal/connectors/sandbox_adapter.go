package connectors

/*
Dispatcher — маршрутизация действий по исполнителям: sandbox_job уходит
во внутренний исполнитель шаблонов, все остальное — внешнему
исполнителю через контур надежности. Неуспех шаблона транслируется
в ошибку действия, чтобы цикл учел его как blocked.
*/

import (
	"context"
	"errors"
	"time"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
	"github.com/xela07ax/tenant-agent-core/internal/sandbox"
)

// SandboxRunner — контракт внутреннего исполнителя шаблонов.
type SandboxRunner interface {
	Execute(ctx context.Context, tenantID string, req sandbox.SandboxRequest) sandbox.ExecutionResult
}

type Dispatcher struct {
	external ActionExecutor
	sandbox  SandboxRunner
}

func NewDispatcher(external ActionExecutor, sb SandboxRunner) *Dispatcher {
	return &Dispatcher{external: external, sandbox: sb}
}

func (d *Dispatcher) Execute(ctx context.Context, action domain.PlannedAction) (domain.ActionResult, error) {
	if action.Category != domain.CategorySandboxJob {
		return d.external.Execute(ctx, action)
	}

	req := sandbox.SandboxRequest{
		TemplateName: str(action.Payload, "template_name"),
		InputParams:  submap(action.Payload, "input_params"),
		InputFiles:   strs(action.Payload, "input_file_refs"),
	}
	res := d.sandbox.Execute(ctx, action.TenantID, req)
	if !res.Success {
		return domain.ActionResult{}, errors.New(res.Execution.ErrorMessage)
	}

	return domain.ActionResult{
		ActionID:   action.ID,
		Outcome:    domain.OutcomeSystemExecuted,
		Detail:     "sandbox template " + req.TemplateName + " completed",
		Response:   res.Execution.OutputData,
		ExecutedAt: time.Now(),
	}, nil
}

func str(payload map[string]interface{}, key string) string {
	v, _ := payload[key].(string)
	return v
}

func submap(payload map[string]interface{}, key string) map[string]interface{} {
	v, _ := payload[key].(map[string]interface{})
	return v
}

func strs(payload map[string]interface{}, key string) []string {
	raw, ok := payload[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
