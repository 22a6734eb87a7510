package postgres

/*
Файл lock_repo.go — реализация tenant lock'а поверх PostgreSQL для
инсталляций без Redis. Атомарность захвата обеспечивает
INSERT .. ON CONFLICT .. WHERE expires_at < NOW(): перехватить можно
только истекшую строку, живой держатель непробиваем.
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// LockStore — lock.Store поверх таблицы tenant_locks.
type LockStore struct {
	repo *Repo
}

func NewLockStore(repo *Repo) *LockStore {
	return &LockStore{repo: repo}
}

func (s *LockStore) Acquire(ctx context.Context, tenantID string, lockType domain.LockType, holderID string, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO tenant_locks (tenant_id, lock_type, holder_id, locked_at, expires_at)
		VALUES ($1, $2, $3, NOW(), NOW() + $4)
		ON CONFLICT (tenant_id, lock_type) DO UPDATE
			SET holder_id = EXCLUDED.holder_id,
			    locked_at = EXCLUDED.locked_at,
			    expires_at = EXCLUDED.expires_at
			WHERE tenant_locks.expires_at < NOW()`

	ct, err := s.repo.pool.Exec(ctx, query, tenantID, lockType, holderID, ttl)
	if err != nil {
		return false, fmt.Errorf("postgres: acquire lock: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *LockStore) Extend(ctx context.Context, tenantID string, lockType domain.LockType, holderID string, ttl time.Duration) (bool, error) {
	query := `
		UPDATE tenant_locks
		SET expires_at = NOW() + $4
		WHERE tenant_id = $1 AND lock_type = $2 AND holder_id = $3 AND expires_at >= NOW()`

	ct, err := s.repo.pool.Exec(ctx, query, tenantID, lockType, holderID, ttl)
	if err != nil {
		return false, fmt.Errorf("postgres: extend lock: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *LockStore) Release(ctx context.Context, tenantID string, lockType domain.LockType, holderID string) error {
	// Чужой или отсутствующий lock — no-op, Release идемпотентен
	_, err := s.repo.pool.Exec(ctx,
		`DELETE FROM tenant_locks WHERE tenant_id = $1 AND lock_type = $2 AND holder_id = $3`,
		tenantID, lockType, holderID)
	if err != nil {
		return fmt.Errorf("postgres: release lock: %w", err)
	}
	return nil
}

func (s *LockStore) CleanupExpired(ctx context.Context) (int, error) {
	ct, err := s.repo.pool.Exec(ctx, `DELETE FROM tenant_locks WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("postgres: cleanup locks: %w", err)
	}
	return int(ct.RowsAffected()), nil
}
