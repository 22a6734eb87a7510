package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

type staticTenants struct {
	ids []string
}

func (s *staticTenants) ListActiveTenants(_ context.Context) ([]string, error) {
	return s.ids, nil
}

type countingRunner struct {
	mu      sync.Mutex
	seen    map[string]int
	active  int
	maxSeen int
	panicOn string
}

func (r *countingRunner) RunCycle(_ context.Context, tenantID string) (*domain.CycleRun, error) {
	r.mu.Lock()
	if r.seen == nil {
		r.seen = make(map[string]int)
	}
	r.seen[tenantID]++
	r.active++
	if r.active > r.maxSeen {
		r.maxSeen = r.active
	}
	r.mu.Unlock()

	if r.panicOn == tenantID {
		panic("boom")
	}

	time.Sleep(10 * time.Millisecond)

	r.mu.Lock()
	r.active--
	r.mu.Unlock()
	return &domain.CycleRun{TenantID: tenantID}, nil
}

type staticKillSwitch struct {
	disabled map[string]bool
}

func (k *staticKillSwitch) IsDisabled(tenantID string) bool { return k.disabled[tenantID] }

func TestTickRunsEveryActiveTenant(t *testing.T) {
	runner := &countingRunner{}
	s := New(&staticTenants{ids: []string{"t-1", "t-2", "t-3"}}, runner, nil, zap.NewNop(), time.Hour, 8)

	s.tick(context.Background())

	require.Len(t, runner.seen, 3)
	for _, id := range []string{"t-1", "t-2", "t-3"} {
		assert.Equal(t, 1, runner.seen[id])
	}
}

func TestTickHonorsConcurrencyLimit(t *testing.T) {
	runner := &countingRunner{}
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = "t-" + string(rune('a'+i))
	}
	s := New(&staticTenants{ids: ids}, runner, nil, zap.NewNop(), time.Hour, 2)

	s.tick(context.Background())

	assert.Len(t, runner.seen, 10)
	assert.LessOrEqual(t, runner.maxSeen, 2)
}

func TestTickSkipsKilledTenants(t *testing.T) {
	runner := &countingRunner{}
	ks := &staticKillSwitch{disabled: map[string]bool{"t-2": true}}
	s := New(&staticTenants{ids: []string{"t-1", "t-2"}}, runner, ks, zap.NewNop(), time.Hour, 8)

	s.tick(context.Background())

	assert.Equal(t, 1, runner.seen["t-1"])
	assert.Zero(t, runner.seen["t-2"])
}

func TestTickSurvivesPanickingCycle(t *testing.T) {
	runner := &countingRunner{panicOn: "t-1"}
	s := New(&staticTenants{ids: []string{"t-1", "t-2"}}, runner, nil, zap.NewNop(), time.Hour, 1)

	// Паника одного тенанта не должна уронить tick
	s.tick(context.Background())

	assert.Equal(t, 1, runner.seen["t-1"])
	assert.Equal(t, 1, runner.seen["t-2"])
}
