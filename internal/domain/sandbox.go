package domain

import (
	"errors"
	"time"
)

// SandboxStatus — статусы state machine исполнения шаблона.
type SandboxStatus string

const (
	SandboxPending   SandboxStatus = "pending"
	SandboxRunning   SandboxStatus = "running"
	SandboxCompleted SandboxStatus = "completed"
	SandboxFailed    SandboxStatus = "failed"
	SandboxTimeout   SandboxStatus = "timeout"
	SandboxKilled    SandboxStatus = "killed"
)

var ErrTerminalStatus = errors.New("sandbox execution already in terminal status")

// IsTerminal — терминальные статусы финальны, дальше переходов нет.
func (s SandboxStatus) IsTerminal() bool {
	switch s {
	case SandboxCompleted, SandboxFailed, SandboxTimeout, SandboxKilled:
		return true
	}
	return false
}

// SandboxExecution — запись одного исполнения шаблона.
type SandboxExecution struct {
	ID           string                 `json:"id"`
	TenantID     string                 `json:"tenant_id"`
	TemplateName string                 `json:"template_name"`
	InputParams  map[string]interface{} `json:"input_params,omitempty"`
	InputFiles   []string               `json:"input_file_refs,omitempty"`

	Status      SandboxStatus          `json:"status"`
	OutputData  map[string]interface{} `json:"output_data,omitempty"`
	OutputFiles []string               `json:"output_file_refs,omitempty"`

	DurationMs   int64   `json:"duration_ms"`
	MemoryUsedMb float64 `json:"memory_used_mb"`
	ErrorMessage string  `json:"error_message,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Transition проверяет допустимость перехода state machine.
func (e *SandboxExecution) Transition(next SandboxStatus) error {
	if e.Status.IsTerminal() {
		return ErrTerminalStatus
	}
	e.Status = next
	return nil
}

// ResourceLimits — декларируемые лимиты шаблона.
type ResourceLimits struct {
	MaxMemoryMb    float64 `yaml:"max_memory_mb" json:"max_memory_mb"`
	MaxTimeSeconds int     `yaml:"max_time_seconds" json:"max_time_seconds"`
}

// ParamSpec — схема одного параметра шаблона.
type ParamSpec struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"` // string, number, bool, list
	Required bool   `yaml:"required" json:"required"`
}

// ScriptTemplate — предодобренный параметризованный трансформ.
// Тело шаблона — чистая функция, регистрируется кодом; этот тип несет
// только метаданные и лимиты из внешнего реестра.
type ScriptTemplate struct {
	Name     string         `yaml:"name" json:"name"`
	Type     string         `yaml:"type" json:"type"`
	Params   []ParamSpec    `yaml:"params" json:"params"`
	Limits   ResourceLimits `yaml:"limits" json:"limits"`
	Version  int            `yaml:"version" json:"version"`
	IsActive bool           `yaml:"is_active" json:"is_active"`
}
