package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter — in-process Counter с той же семантикой, что у Redis INCR.
// Используется в тестах и однопроцессных конфигурациях.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	// expiry игнорируем: ключ окна включает windowStart, старые ключи
	// просто перестают использоваться
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}
