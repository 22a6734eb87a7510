package killswitch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/infra"
)

// GlobalTenantID — идентификатор глобального флага в сигналах и set'ах.
const GlobalTenantID = "*"

// snapshotLockTTL ограничивает время, на которое один инстанс забирает
// право переписать Redis-снимок.
const snapshotLockTTL = 30 * time.Second

// DisabledProvider — авторитетный источник выключенных тенантов (Postgres).
type DisabledProvider interface {
	ListDisabledTenants(ctx context.Context) ([]string, error)
	IsGloballyDisabled(ctx context.Context) (bool, error)
}

// Manager — L1 (RAM) кэш kill switch'а: глобальный флаг + set выключенных
// тенантов. Прогревается из БД, зеркалируется в Redis-set, обновляется
// pub/sub сигналами. Это «мгновенный стоп»; авторитетный снимок
// AgentConfig цикл все равно читает сам — кэш лишь позволяет не начинать
// цикл вовсе.
type Manager struct {
	mu              sync.RWMutex
	globalDisabled  bool
	disabledTenants map[string]struct{}

	repo   DisabledProvider
	rdb    *redis.Client
	logger *zap.Logger
}

func NewManager(rdb *redis.Client, repo DisabledProvider, logger *zap.Logger) *Manager {
	return &Manager{
		disabledTenants: make(map[string]struct{}),
		repo:            repo,
		rdb:             rdb,
		logger:          logger.With(zap.String("mod", "killswitch")),
	}
}

// Init перечитывает авторитетный список из БД, применяет его в L1 и
// зеркалирует в Redis. Вызывается на старте и при каждой переподписке.
func (m *Manager) Init(ctx context.Context) error {
	ids, err := m.repo.ListDisabledTenants(ctx)
	if err != nil {
		return fmt.Errorf("killswitch: fetch disabled tenants: %w", err)
	}

	global, err := m.repo.IsGloballyDisabled(ctx)
	if err != nil {
		return fmt.Errorf("killswitch: fetch global flag: %w", err)
	}
	if global {
		ids = append(ids, GlobalTenantID)
	}

	// L1 первым: планировщику нельзя ждать Redis
	m.applyBatch(ids)
	m.syncRedisSnapshot(ctx, ids)
	return nil
}

// applyBatch принимает полный авторитетный снимок: при ресинке после
// переподключения устаревшие записи должны исчезнуть.
func (m *Manager) applyBatch(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globalDisabled = false
	m.disabledTenants = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == GlobalTenantID {
			m.globalDisabled = true
			continue
		}
		m.disabledTenants[id] = struct{}{}
	}
}

// apply накатывает одиночный сигнал поверх текущего состояния.
func (m *Manager) apply(sig Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case sig.Global():
		m.globalDisabled = sig.Disabled
	case sig.Disabled:
		m.disabledTenants[sig.TenantID] = struct{}{}
	default:
		delete(m.disabledTenants, sig.TenantID)
	}
}

// syncRedisSnapshot переписывает Redis-set целиком под SetNX-замком:
// писатель один, set заменяется DEL+SADD в одном pipeline, чтобы
// заново включенные тенанты не зависали в L2.
func (m *Manager) syncRedisSnapshot(ctx context.Context, ids []string) {
	ok, err := m.rdb.SetNX(ctx, infra.RedisKeyLockWarmupTenant, "processing", snapshotLockTTL).Result()
	if err != nil || !ok {
		// Сеть легла либо снимок пишет другой инстанс — L1 уже актуален
		return
	}

	pipe := m.rdb.TxPipeline()
	pipe.Del(ctx, infra.RedisKeyDisabledTenants)
	if len(ids) > 0 {
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		pipe.SAdd(ctx, infra.RedisKeyDisabledTenants, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("failed to mirror kill switch snapshot to Redis",
			zap.String("key", infra.RedisKeyDisabledTenants), zap.Error(err))
	}
}

// StartListener держит подписку на сигналы живой до отмены контекста:
// обрыв канала — переподписка и обязательный полный ресинк из БД.
func (m *Manager) StartListener(ctx context.Context) {
	for ctx.Err() == nil {
		pubsub := m.rdb.Subscribe(ctx, infra.RedisChanKillSwitch)

		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			m.logger.Error("failed to subscribe to kill switch channel",
				zap.String("chan", infra.RedisChanKillSwitch), zap.Error(err))
			sleepCtx(ctx, 5*time.Second)
			continue
		}

		// Пока подписки не было, сигналы могли пройти мимо
		if err := m.Init(ctx); err != nil {
			m.logger.Error("kill switch resync failed", zap.Error(err))
		}

		m.consume(ctx, pubsub.Channel())
		pubsub.Close()
		sleepCtx(ctx, time.Second)
	}
}

// consume читает сообщения до отмены контекста или обрыва канала.
func (m *Manager) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			sig, err := ParseSignal(msg.Payload)
			if err != nil {
				m.logger.Warn("dropping kill switch signal", zap.Error(err))
				continue
			}
			m.apply(sig)
			m.logger.Info("kill switch signal applied",
				zap.String("tenant_id", sig.TenantID), zap.Bool("disabled", sig.Disabled))
		}
	}
}

// IsDisabled — максимально быстрый метод для проверки перед циклом.
func (m *Manager) IsDisabled(tenantID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.globalDisabled {
		return true
	}
	_, off := m.disabledTenants[tenantID]
	return off
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
