package postgres

/*
Файл order_repo.go — заказы и очередь exceptions на человеческое ревью.
Результат валидации раскладывается построчно: каждый exception — своя
строка, резолвится независимо.
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

func (r *Repo) GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	query := `
		SELECT id, tenant_id, fee_amount, total_amount, tech_fee,
		       payment_method, bill_type, credit_approved,
		       property_address, borrower_contact, property_contact
		FROM orders
		WHERE tenant_id = $1 AND id = $2`

	o := &domain.Order{}
	err := r.pool.QueryRow(ctx, query, tenantID, orderID).Scan(
		&o.ID, &o.TenantID, &o.FeeAmount, &o.TotalAmount, &o.TechFee,
		&o.PaymentMethod, &o.BillType, &o.CreditApproved,
		&o.PropertyAddress, &o.BorrowerContact, &o.PropertyContact,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("postgres: order %s not found", orderID)
		}
		return nil, fmt.Errorf("postgres: get order: %w", err)
	}
	return o, nil
}

// SaveValidation пишет результат и exceptions одной транзакцией:
// наполовину сохраненной валидации не бывает.
func (r *Repo) SaveValidation(ctx context.Context, tenantID string, v domain.OrderValidation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save validation: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO order_validations (order_id, tenant_id, pricing_valid, credit_valid, requirements_valid, auto_fix_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (order_id) DO UPDATE
			SET pricing_valid = EXCLUDED.pricing_valid,
			    credit_valid = EXCLUDED.credit_valid,
			    requirements_valid = EXCLUDED.requirements_valid,
			    auto_fix_count = EXCLUDED.auto_fix_count`,
		v.OrderID, tenantID, v.PricingValid, v.CreditValid, v.RequirementsValid, len(v.AutoFixes))
	if err != nil {
		return fmt.Errorf("postgres: save validation: %w", err)
	}

	for _, e := range v.Exceptions {
		_, err = tx.Exec(ctx, `
			INSERT INTO validation_exceptions (order_id, tenant_id, type, severity, field, message, resolved, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, false, NOW())`,
			e.OrderID, tenantID, e.Type, e.Severity, e.Field, e.Message)
		if err != nil {
			return fmt.Errorf("postgres: save exception: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// UnresolvedExceptions отдает очередь для PLAN в стабильном порядке.
func (r *Repo) UnresolvedExceptions(ctx context.Context, tenantID string) ([]domain.ValidationException, error) {
	query := `
		SELECT order_id, type, severity, field, message
		FROM validation_exceptions
		WHERE tenant_id = $1 AND NOT resolved
		ORDER BY created_at, order_id`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list exceptions: %w", err)
	}
	defer rows.Close()

	var out []domain.ValidationException
	for rows.Next() {
		var e domain.ValidationException
		if err := rows.Scan(&e.OrderID, &e.Type, &e.Severity, &e.Field, &e.Message); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
