package audit

/*
Recorder — неблокирующий сборщик аудит-событий цикла.

Архитектура:
- Non-blocking Logging: события уходят в буферизованный канал, задержки
  записи в БД не влияют на длительность фаз цикла.
- Batching: накопление в памяти и пакетная вставка по таймеру или при
  достижении лимита пачки.
- Drain Pattern: при остановке канал запирается, воркер вычитывает
  остатки и делает финальный flush — события не теряются на рестарте.
- Load Shedding: при переполнении буфера событие сбрасывается в обычный
  лог, а не блокирует горячий путь.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически уходят события.
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []ActionEvent) error
}

type Recorder struct {
	ch         chan ActionEvent
	repo       StorageInterface
	logger     *zap.Logger
	wg         sync.WaitGroup
	bufferFill prometheus.Gauge

	flushEvery time.Duration
	batchSize  int

	// mu сериализует send против close: Log шлет под RLock, Stop
	// закрывает канал под Lock. Отправка в закрытый канал исключена.
	mu     sync.RWMutex
	closed bool
}

func NewRecorder(repo StorageInterface, logger *zap.Logger, bufferSize int, flushEvery time.Duration, bufferFill prometheus.Gauge) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if flushEvery <= 0 {
		flushEvery = 500 * time.Millisecond
	}
	return &Recorder{
		ch:         make(chan ActionEvent, bufferSize),
		repo:       repo,
		logger:     logger.With(zap.String("mod", "audit")),
		bufferFill: bufferFill,
		flushEvery: flushEvery,
		batchSize:  100,
	}
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.worker()
}

// Stop запирает вход в канал и ждет, пока воркер всё допишет.
// Повторный Stop — no-op.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()

	r.logger.Info("stopping audit recorder: flushing buffer...")
	r.wg.Wait()
	r.logger.Info("audit recorder stopped gracefully")
}

func (r *Recorder) Log(event ActionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("audit event dropped: recorder is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case r.ch <- event:
		if r.bufferFill != nil {
			r.bufferFill.Set(float64(len(r.ch)))
		}
	default:
		// Buffer overflow (Backpressure): не теряем данные молча
		r.logger.Error("audit_buffer_overflow",
			zap.String("tenant_id", event.TenantID),
			zap.String("action_id", event.ActionID),
		)
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]ActionEvent, 0, r.batchSize)
	ticker := time.NewTicker(r.flushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст может быть уже отменен при shutdown
		if err := r.repo.WriteBatch(context.Background(), batch); err != nil {
			r.logger.Error("audit flush failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-r.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали всё — финальный flush и выход
				flush()
				r.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
