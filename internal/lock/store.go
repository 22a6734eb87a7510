package lock

import (
	"context"
	"time"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// Store — контракт распределенной блокировки тенанта.
// Единственное жесткое требование к реализации: Acquire атомарен
// в смысле "insert-if-absent-or-expired". Любое KV или реляционное
// хранилище с compare-and-set примитивом подходит.
type Store interface {
	// Acquire пытается захватить лок. false — лок занят живым держателем.
	// Это ожидаемый исход, не ошибка: вызывающий просто пропускает цикл.
	// Никаких retry/backoff внутри вызова.
	Acquire(ctx context.Context, tenantID string, lockType domain.LockType, holderID string, ttl time.Duration) (bool, error)

	// Extend продлевает TTL, только если лок все еще у holderID.
	// Потерянный лок воскресить нельзя: false и точка.
	Extend(ctx context.Context, tenantID string, lockType domain.LockType, holderID string, ttl time.Duration) (bool, error)

	// Release снимает лок текущего держателя. Идемпотентен:
	// повторный или чужой Release — это no-op без ошибки.
	Release(ctx context.Context, tenantID string, lockType domain.LockType, holderID string) error

	// CleanupExpired — advisory-уборка истекших строк. Acquire и так
	// терпим к протухшим записям, так что это только гигиена хранилища.
	CleanupExpired(ctx context.Context) (int, error)
}
