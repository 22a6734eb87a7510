package killswitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerApplyBatch(t *testing.T) {
	m := NewManager(nil, nil, zap.NewNop())

	m.applyBatch([]string{"t-1", "t-2"})
	assert.True(t, m.IsDisabled("t-1"))
	assert.True(t, m.IsDisabled("t-2"))
	assert.False(t, m.IsDisabled("t-3"))

	// Снимок авторитетный: t-2 включили обратно
	m.applyBatch([]string{"t-1"})
	assert.False(t, m.IsDisabled("t-2"))
}

func TestManagerGlobalFlag(t *testing.T) {
	m := NewManager(nil, nil, zap.NewNop())

	m.applyBatch([]string{GlobalTenantID})
	assert.True(t, m.IsDisabled("any-tenant"))

	m.applyBatch(nil)
	assert.False(t, m.IsDisabled("any-tenant"))
}

func TestManagerApplySignal(t *testing.T) {
	m := NewManager(nil, nil, zap.NewNop())

	m.apply(Signal{TenantID: "t-1", Disabled: true})
	assert.True(t, m.IsDisabled("t-1"))

	m.apply(Signal{TenantID: "t-1", Disabled: false})
	assert.False(t, m.IsDisabled("t-1"))

	// Глобальный сигнал гасит всех, не трогая пер-тенантный set
	m.apply(Signal{TenantID: "t-2", Disabled: true})
	m.apply(Signal{TenantID: GlobalTenantID, Disabled: true})
	assert.True(t, m.IsDisabled("t-9"))

	m.apply(Signal{TenantID: GlobalTenantID, Disabled: false})
	assert.False(t, m.IsDisabled("t-9"))
	assert.True(t, m.IsDisabled("t-2"))
}

func TestParseSignal(t *testing.T) {
	sig, err := ParseSignal("tenant-7:on")
	require.NoError(t, err)
	assert.Equal(t, Signal{TenantID: "tenant-7", Disabled: true}, sig)
	assert.False(t, sig.Global())

	// Старый формат bool-флага тоже принимается
	sig, err = ParseSignal("tenant-7:false")
	require.NoError(t, err)
	assert.False(t, sig.Disabled)

	sig, err = ParseSignal("*:on")
	require.NoError(t, err)
	assert.True(t, sig.Global())
}

func TestParseSignal_Malformed(t *testing.T) {
	for _, payload := range []string{"", "tenant-7", ":on", "tenant-7:maybe"} {
		_, err := ParseSignal(payload)
		assert.Error(t, err, "payload %q", payload)
	}
}

func TestSignalRoundTrip(t *testing.T) {
	for _, sig := range []Signal{
		{TenantID: "t-1", Disabled: true},
		{TenantID: "t-1", Disabled: false},
		{TenantID: GlobalTenantID, Disabled: true},
	} {
		parsed, err := ParseSignal(sig.String())
		require.NoError(t, err)
		assert.Equal(t, sig, parsed)
	}
}
