package sandbox

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// TemplateOutput — результат чистой функции шаблона.
// MemoryUsedMb — декларируемая оценка: шаблон обязан честно отчитаться,
// executor сверяет ее с лимитом.
type TemplateOutput struct {
	Data         map[string]interface{}
	FileRefs     []string
	MemoryUsedMb float64
}

// TemplateFunc — тело шаблона: детерминированный трансформ без
// внешнего состояния. Это делает шаблоны юнит-тестируемыми напрямую.
type TemplateFunc func(ctx context.Context, params map[string]interface{}, fileRefs []string) (*TemplateOutput, error)

// Registry — источник шаблонов для executor'а.
type Registry interface {
	// Template возвращает метаданные и тело активного шаблона.
	// false — шаблона нет, он неактивен или тело не зарегистрировано.
	Template(name string) (domain.ScriptTemplate, TemplateFunc, bool)
}

// FileRegistry читает метаданные (схему параметров, лимиты, версию,
// флаг активности) из внешнего yaml-файла; тела шаблонов регистрируются
// кодом через Register. Ядро реестр только читает.
type FileRegistry struct {
	mu    sync.RWMutex
	meta  map[string]domain.ScriptTemplate
	funcs map[string]TemplateFunc
}

type registryFile struct {
	Templates []domain.ScriptTemplate `yaml:"templates"`
}

func NewFileRegistry() *FileRegistry {
	return &FileRegistry{
		meta:  make(map[string]domain.ScriptTemplate),
		funcs: make(map[string]TemplateFunc),
	}
}

// LoadFile загружает (или перезагружает) метаданные из yaml.
func (r *FileRegistry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("sandbox: read registry %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("sandbox: parse registry %s: %w", path, err)
	}

	meta := make(map[string]domain.ScriptTemplate, len(file.Templates))
	for _, t := range file.Templates {
		meta[t.Name] = t
	}

	r.mu.Lock()
	r.meta = meta
	r.mu.Unlock()
	return nil
}

// AddTemplate кладет метаданные напрямую (тесты, embedded-конфигурация).
func (r *FileRegistry) AddTemplate(t domain.ScriptTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta[t.Name] = t
}

// Register привязывает тело к имени шаблона.
func (r *FileRegistry) Register(name string, fn TemplateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

func (r *FileRegistry) Template(name string) (domain.ScriptTemplate, TemplateFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.meta[name]
	if !ok || !meta.IsActive {
		return domain.ScriptTemplate{}, nil, false
	}
	fn, ok := r.funcs[name]
	if !ok {
		return domain.ScriptTemplate{}, nil, false
	}
	return meta, fn, true
}

// ValidateParams проверяет вход по схеме шаблона: обязательные
// параметры присутствуют, типы совпадают.
func ValidateParams(meta domain.ScriptTemplate, params map[string]interface{}) error {
	for _, spec := range meta.Params {
		val, ok := params[spec.Name]
		if !ok {
			if spec.Required {
				return fmt.Errorf("missing required parameter %q", spec.Name)
			}
			continue
		}
		if !typeMatches(spec.Type, val) {
			return fmt.Errorf("parameter %q: expected %s", spec.Name, spec.Type)
		}
	}
	return nil
}

func typeMatches(specType string, val interface{}) bool {
	switch specType {
	case "string":
		_, ok := val.(string)
		return ok
	case "number":
		switch val.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "bool":
		_, ok := val.(bool)
		return ok
	case "list":
		_, ok := val.([]interface{})
		return ok
	default:
		return true
	}
}
