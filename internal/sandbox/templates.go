package sandbox

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Встроенные предодобренные шаблоны. Каждый — чистый трансформ над
// переданными данными: никакого ambient-состояния, никаких side effects.

// RegisterBuiltins привязывает встроенные тела к реестру.
func RegisterBuiltins(r *FileRegistry) {
	r.Register("csv_column_stats", CSVColumnStats)
	r.Register("contact_dedupe", ContactDedupe)
	r.Register("order_fee_rollup", OrderFeeRollup)
}

// listParam достает список map'ов из именованного параметра.
// Имя должно совпадать со схемой шаблона в реестре: то, что пропустил
// ValidateParams, функция обязана уметь прочитать.
func listParam(params map[string]interface{}, name string) ([]map[string]interface{}, error) {
	raw, ok := params[name].([]interface{})
	if !ok {
		return nil, fmt.Errorf("parameter %q must be a list of objects", name)
	}
	rows := make([]map[string]interface{}, 0, len(raw))
	for i, item := range raw {
		row, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not an object", name, i)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// memEstimate — грубая декларация потребления по объему входа.
func memEstimate(rows int) float64 {
	return 1.0 + float64(rows)*0.002
}

// CSVColumnStats считает count/min/max/mean по числовой колонке.
func CSVColumnStats(_ context.Context, params map[string]interface{}, _ []string) (*TemplateOutput, error) {
	column, ok := params["column"].(string)
	if !ok || column == "" {
		return nil, fmt.Errorf("parameter %q is required", "column")
	}
	rows, err := listParam(params, "rows")
	if err != nil {
		return nil, err
	}

	var count int
	var sum float64
	min, max := math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		val, ok := row[column].(float64)
		if !ok {
			continue
		}
		count++
		sum += val
		min = math.Min(min, val)
		max = math.Max(max, val)
	}

	data := map[string]interface{}{
		"column": column,
		"count":  count,
	}
	if count > 0 {
		data["min"] = min
		data["max"] = max
		data["mean"] = sum / float64(count)
	}

	return &TemplateOutput{Data: data, MemoryUsedMb: memEstimate(len(rows))}, nil
}

// ContactDedupe убирает дубли контактов по нормализованному email.
// Первое вхождение побеждает (вход детерминирован — выход тоже).
func ContactDedupe(_ context.Context, params map[string]interface{}, _ []string) (*TemplateOutput, error) {
	rows, err := listParam(params, "contacts")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(rows))
	unique := make([]interface{}, 0, len(rows))
	var dropped int
	for _, row := range rows {
		email, _ := row["email"].(string)
		key := strings.ToLower(strings.TrimSpace(email))
		if key == "" {
			unique = append(unique, row)
			continue
		}
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, row)
	}

	return &TemplateOutput{
		Data: map[string]interface{}{
			"contacts":  unique,
			"total_in":  len(rows),
			"total_out": len(unique),
			"dropped":   dropped,
		},
		MemoryUsedMb: memEstimate(len(rows)),
	}, nil
}

// OrderFeeRollup суммирует fee_amount заказов по полю группировки
// (group_by, по умолчанию status).
func OrderFeeRollup(_ context.Context, params map[string]interface{}, _ []string) (*TemplateOutput, error) {
	rows, err := listParam(params, "orders")
	if err != nil {
		return nil, err
	}
	groupBy, _ := params["group_by"].(string)
	if groupBy == "" {
		groupBy = "status"
	}

	totals := make(map[string]float64)
	for _, row := range rows {
		key, _ := row[groupBy].(string)
		if key == "" {
			key = "unknown"
		}
		fee, _ := row["fee_amount"].(float64)
		totals[key] += fee
	}

	// Стабильный порядок групп в выводе
	groups := make([]string, 0, len(totals))
	for g := range totals {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	rollup := make([]interface{}, 0, len(groups))
	for _, g := range groups {
		rollup = append(rollup, map[string]interface{}{groupBy: g, "total_fees": totals[g]})
	}

	return &TemplateOutput{
		Data:         map[string]interface{}{"rollup": rollup, "group_by": groupBy, "total_orders": len(rows)},
		MemoryUsedMb: memEstimate(len(rows)),
	}, nil
}
