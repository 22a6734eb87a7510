package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows(items ...map[string]interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

func TestCSVColumnStats(t *testing.T) {
	out, err := CSVColumnStats(context.Background(), map[string]interface{}{
		"column": "fee",
		"rows": rows(
			map[string]interface{}{"fee": 100.0},
			map[string]interface{}{"fee": 300.0},
			map[string]interface{}{"fee": "not a number"},
			map[string]interface{}{"other": 1.0},
		),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Data["count"])
	assert.Equal(t, 100.0, out.Data["min"])
	assert.Equal(t, 300.0, out.Data["max"])
	assert.Equal(t, 200.0, out.Data["mean"])
}

func TestCSVColumnStats_MissingColumnParam(t *testing.T) {
	_, err := CSVColumnStats(context.Background(), map[string]interface{}{"rows": rows()}, nil)
	assert.Error(t, err)
}

func TestContactDedupe(t *testing.T) {
	out, err := ContactDedupe(context.Background(), map[string]interface{}{
		"contacts": rows(
			map[string]interface{}{"email": "A@example.com", "name": "First"},
			map[string]interface{}{"email": "a@example.com ", "name": "Dup"},
			map[string]interface{}{"email": "b@example.com", "name": "Other"},
			map[string]interface{}{"name": "NoEmail"},
		),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, out.Data["total_in"])
	assert.Equal(t, 3, out.Data["total_out"])
	assert.Equal(t, 1, out.Data["dropped"])

	// Первое вхождение побеждает
	contacts := out.Data["contacts"].([]interface{})
	first := contacts[0].(map[string]interface{})
	assert.Equal(t, "First", first["name"])
}

func TestContactDedupe_Deterministic(t *testing.T) {
	params := map[string]interface{}{
		"contacts": rows(
			map[string]interface{}{"email": "x@example.com"},
			map[string]interface{}{"email": "y@example.com"},
			map[string]interface{}{"email": "x@example.com"},
		),
	}

	first, err := ContactDedupe(context.Background(), params, nil)
	require.NoError(t, err)
	second, err := ContactDedupe(context.Background(), params, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
}

func TestOrderFeeRollup(t *testing.T) {
	out, err := OrderFeeRollup(context.Background(), map[string]interface{}{
		"orders": rows(
			map[string]interface{}{"status": "open", "fee_amount": 100.0},
			map[string]interface{}{"status": "open", "fee_amount": 50.0},
			map[string]interface{}{"status": "closed", "fee_amount": 75.0},
			map[string]interface{}{"fee_amount": 10.0},
		),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, out.Data["total_orders"])
	rollup := out.Data["rollup"].([]interface{})
	require.Len(t, rollup, 3)

	// Порядок стабилен: группы по алфавиту
	first := rollup[0].(map[string]interface{})
	assert.Equal(t, "closed", first["status"])
	assert.Equal(t, 75.0, first["total_fees"])
}

func TestOrderFeeRollup_GroupByOverride(t *testing.T) {
	out, err := OrderFeeRollup(context.Background(), map[string]interface{}{
		"group_by": "client_id",
		"orders": rows(
			map[string]interface{}{"client_id": "c1", "fee_amount": 20.0},
			map[string]interface{}{"client_id": "c1", "fee_amount": 30.0},
			map[string]interface{}{"client_id": "c2", "fee_amount": 5.0},
		),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "client_id", out.Data["group_by"])
	rollup := out.Data["rollup"].([]interface{})
	require.Len(t, rollup, 2)
	first := rollup[0].(map[string]interface{})
	assert.Equal(t, "c1", first["client_id"])
	assert.Equal(t, 50.0, first["total_fees"])
}
