package orders

/*
Пайплайн валидации входящих work orders: три независимые проверки
(pricing, credit, requirements) + безопасные автокоррекции.
Auto-fix применяется ДО валидации и фиксируется в результате, поэтому
исправленное поле не порождает дублирующий exception по той же причине.
Все нерешенные проблемы уходят типизированными exception'ами в очередь
на человеческое ревью: упавший заказ никогда не теряется молча.
*/

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// OrderRepo — чтение заказов и персист результатов валидации.
type OrderRepo interface {
	GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
	SaveValidation(ctx context.Context, tenantID string, v domain.OrderValidation) error
	UnresolvedExceptions(ctx context.Context, tenantID string) ([]domain.ValidationException, error)
}

type Pipeline struct {
	repo   OrderRepo
	logger *zap.Logger
}

func NewPipeline(repo OrderRepo, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		repo:   repo,
		logger: logger.Named("orders"),
	}
}

// ProcessNewOrder загружает заказ, чинит что можно, валидирует и
// сохраняет результат. Ошибка возвращается только на I/O-сбои.
func (p *Pipeline) ProcessNewOrder(ctx context.Context, tenantID, orderID string) (domain.OrderValidation, error) {
	order, err := p.repo.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return domain.OrderValidation{}, fmt.Errorf("orders: load %s: %w", orderID, err)
	}

	validation := Validate(order)

	if err := p.repo.SaveValidation(ctx, tenantID, validation); err != nil {
		return domain.OrderValidation{}, fmt.Errorf("orders: save validation %s: %w", orderID, err)
	}

	if !validation.IsValid() {
		p.logger.Info("order failed validation",
			zap.String("tenant_id", tenantID),
			zap.String("order_id", orderID),
			zap.Int("exceptions", len(validation.Exceptions)),
			zap.Int("auto_fixes", len(validation.AutoFixes)),
		)
	}
	return validation, nil
}

// UnresolvedExceptions отдает очередь нерешенных проблем для PLAN.
func (p *Pipeline) UnresolvedExceptions(ctx context.Context, tenantID string) ([]domain.ValidationException, error) {
	return p.repo.UnresolvedExceptions(ctx, tenantID)
}

// Validate — чистая часть пайплайна: auto-fix, затем три проверки.
// Мутирует order только результатами зафиксированных автокоррекций.
func Validate(order *domain.Order) domain.OrderValidation {
	v := domain.OrderValidation{
		OrderID:    order.ID,
		AutoFixes:  []domain.AutoFix{},
		Exceptions: []domain.ValidationException{},
	}

	applyAutoFixes(order, &v)

	v.PricingValid = checkPricing(order, &v)
	v.CreditValid = checkCredit(order, &v)
	v.RequirementsValid = checkRequirements(order, &v)
	return v
}

// applyAutoFixes — только детерминированные, доказуемо безопасные правки.
func applyAutoFixes(order *domain.Order, v *domain.OrderValidation) {
	if order.TechFee == nil {
		zero := 0.0
		order.TechFee = &zero
		v.AutoFixes = append(v.AutoFixes, domain.AutoFix{
			Field:    "tech_fee",
			OldValue: "null",
			NewValue: "0",
			Reason:   "missing tech fee normalized to zero",
		})
	}
}

func checkPricing(order *domain.Order, v *domain.OrderValidation) bool {
	ok := true

	if order.FeeAmount <= 0 {
		ok = false
		v.Exceptions = append(v.Exceptions, domain.ValidationException{
			OrderID:  order.ID,
			Type:     domain.ExceptionPricing,
			Severity: domain.SeverityError,
			Field:    "fee_amount",
			Message:  "fee amount must be positive, got " + strconv.FormatFloat(order.FeeAmount, 'f', -1, 64),
		})
	}
	if order.TotalAmount < order.FeeAmount {
		ok = false
		v.Exceptions = append(v.Exceptions, domain.ValidationException{
			OrderID:  order.ID,
			Type:     domain.ExceptionPricing,
			Severity: domain.SeverityError,
			Field:    "total_amount",
			Message:  "total amount is less than fee amount",
		})
	}
	if order.TechFee != nil && *order.TechFee < 0 {
		ok = false
		v.Exceptions = append(v.Exceptions, domain.ValidationException{
			OrderID:  order.ID,
			Type:     domain.ExceptionPricing,
			Severity: domain.SeverityError,
			Field:    "tech_fee",
			Message:  "tech fee cannot be negative",
		})
	}
	return ok
}

// checkCredit: bill-type заказы требуют одобрения под конкретный способ оплаты.
func checkCredit(order *domain.Order, v *domain.OrderValidation) bool {
	if !order.BillType {
		return true
	}
	if order.PaymentMethod == domain.PaymentUnknown {
		v.Exceptions = append(v.Exceptions, domain.ValidationException{
			OrderID:  order.ID,
			Type:     domain.ExceptionCredit,
			Severity: domain.SeverityError,
			Field:    "payment_method",
			Message:  "bill-type order has no payment method",
		})
		return false
	}
	if !order.CreditApproved {
		v.Exceptions = append(v.Exceptions, domain.ValidationException{
			OrderID:  order.ID,
			Type:     domain.ExceptionCredit,
			Severity: domain.SeverityCritical,
			Field:    "credit_approved",
			Message:  fmt.Sprintf("bill-type order requires credit approval for payment method %q", order.PaymentMethod),
		})
		return false
	}
	return true
}

func checkRequirements(order *domain.Order, v *domain.OrderValidation) bool {
	ok := true
	required := []struct {
		field string
		value string
	}{
		{"property_address", order.PropertyAddress},
		{"borrower_contact", order.BorrowerContact},
		{"property_contact", order.PropertyContact},
	}

	for _, r := range required {
		if r.value == "" {
			ok = false
			v.Exceptions = append(v.Exceptions, domain.ValidationException{
				OrderID:  order.ID,
				Type:     domain.ExceptionRequirements,
				Severity: domain.SeverityError,
				Field:    r.field,
				Message:  "required field " + r.field + " is missing",
			})
		}
	}
	return ok
}
