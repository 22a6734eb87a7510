package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "tacore"
)

// Ключи состояния (Sets / Strings)
const (
	// RedisKeyDisabledTenants — set тенантов, остановленных оператором.
	// Глобальный kill switch хранится членом "*" в этом же set'е.
	RedisKeyDisabledTenants  = RedisNamespace + ":tenants:disabled_set"
	RedisKeyLockWarmupTenant = RedisNamespace + ":lock:warmup:disabled"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanKillSwitch — трансляция включения/выключения тенантов и глобального флага.
	RedisChanKillSwitch = RedisNamespace + ":agent:kill-switch-signal"
)

// TenantLockKey — ключ эксклюзивной блокировки цикла тенанта.
func TenantLockKey(tenantID, lockType string) string {
	return fmt.Sprintf("%s:lock:%s:%s", RedisNamespace, lockType, tenantID)
}

// RateLimitKey — ключ счетчика окна (tenant, category, windowStart unix).
func RateLimitKey(tenantID, category string, windowStart int64) string {
	return fmt.Sprintf("%s:rl:%s:%s:%d", RedisNamespace, tenantID, category, windowStart)
}
