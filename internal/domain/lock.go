package domain

import "time"

// LockType — тип эксклюзивной блокировки тенанта.
type LockType string

const (
	LockCycle       LockType = "cycle"
	LockMaintenance LockType = "maintenance"
)

// TenantLock — строка блокировки. Инвариант хранилища: не больше одной
// неистекшей строки на пару (tenant_id, lock_type).
type TenantLock struct {
	TenantID  string    `json:"tenant_id"`
	LockType  LockType  `json:"lock_type"`
	HolderID  string    `json:"holder_id"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired true, если TTL вышел и строку можно перехватывать.
func (l TenantLock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
