package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
	"github.com/xela07ax/tenant-agent-core/internal/infra"
)

// Lua-скрипты для compare-and-set по holder'у. SET NX дает атомарный
// захват, но продление и снятие обязаны проверять владельца, иначе
// отставший процесс сможет воскресить потерянный лок.
var (
	extendScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`)

	releaseScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)
)

// RedisStore реализует Store поверх Redis: значение ключа — holderID,
// TTL ключа — срок жизни лока. Протухание обрабатывает сам Redis.
type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisStore(rdb *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		logger: logger.Named("lock"),
	}
}

func (s *RedisStore) Acquire(ctx context.Context, tenantID string, lockType domain.LockType, holderID string, ttl time.Duration) (bool, error) {
	key := infra.TenantLockKey(tenantID, string(lockType))

	ok, err := s.rdb.SetNX(ctx, key, holderID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Extend(ctx context.Context, tenantID string, lockType domain.LockType, holderID string, ttl time.Duration) (bool, error) {
	key := infra.TenantLockKey(tenantID, string(lockType))

	res, err := extendScript.Run(ctx, s.rdb, []string{key}, holderID, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("lock: extend %s: %w", key, err)
	}
	if res == 0 {
		// Лок истек или перехвачен конкурентом — держатель обязан остановиться
		s.logger.Warn("lock extension denied: holder mismatch or expired",
			zap.String("tenant_id", tenantID),
			zap.String("lock_type", string(lockType)),
		)
		return false, nil
	}
	return true, nil
}

func (s *RedisStore) Release(ctx context.Context, tenantID string, lockType domain.LockType, holderID string) error {
	key := infra.TenantLockKey(tenantID, string(lockType))

	if _, err := releaseScript.Run(ctx, s.rdb, []string{key}, holderID).Int64(); err != nil {
		return fmt.Errorf("lock: release %s: %w", key, err)
	}
	// 0 (ключа нет или чужой holder) — тоже успех: Release идемпотентен
	return nil
}

// CleanupExpired для Redis — no-op: TTL вычищает ключи сам.
func (s *RedisStore) CleanupExpired(ctx context.Context) (int, error) {
	return 0, nil
}
