package lock

import (
	"context"
	"sync"
	"time"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

type memoryKey struct {
	tenantID string
	lockType domain.LockType
}

// MemoryStore — in-process реализация Store с теми же CAS-семантиками,
// что у Redis/Postgres вариантов. Нужна для конкурентных тестов:
// мьютекс делает Acquire честно атомарным.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[memoryKey]domain.TenantLock
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks: make(map[memoryKey]domain.TenantLock),
		now:   time.Now,
	}
}

// SetClock подменяет источник времени (для тестов протухания).
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Acquire(_ context.Context, tenantID string, lockType domain.LockType, holderID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{tenantID, lockType}
	now := s.now()

	if existing, ok := s.locks[key]; ok && !existing.Expired(now) {
		return false, nil
	}

	s.locks[key] = domain.TenantLock{
		TenantID:  tenantID,
		LockType:  lockType,
		HolderID:  holderID,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return true, nil
}

func (s *MemoryStore) Extend(_ context.Context, tenantID string, lockType domain.LockType, holderID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{tenantID, lockType}
	now := s.now()

	existing, ok := s.locks[key]
	if !ok || existing.Expired(now) || existing.HolderID != holderID {
		return false, nil
	}

	existing.ExpiresAt = now.Add(ttl)
	s.locks[key] = existing
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, tenantID string, lockType domain.LockType, holderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{tenantID, lockType}
	if existing, ok := s.locks[key]; ok && existing.HolderID == holderID {
		delete(s.locks, key)
	}
	return nil
}

func (s *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, l := range s.locks {
		if l.Expired(now) {
			delete(s.locks, key)
			removed++
		}
	}
	return removed, nil
}
