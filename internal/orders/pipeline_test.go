package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

func validOrder() *domain.Order {
	fee := 25.0
	return &domain.Order{
		ID:              "order-1",
		TenantID:        "tenant-1",
		FeeAmount:       450,
		TotalAmount:     475,
		TechFee:         &fee,
		PropertyAddress: "221B Baker St",
		BorrowerContact: "borrower@example.com",
		PropertyContact: "owner@example.com",
	}
}

func TestValidate_CleanOrderPasses(t *testing.T) {
	v := Validate(validOrder())

	assert.True(t, v.IsValid())
	assert.Empty(t, v.Exceptions)
	assert.Empty(t, v.AutoFixes)
}

func TestValidate_ZeroFeeIsPricingError(t *testing.T) {
	order := validOrder()
	order.FeeAmount = 0

	v := Validate(order)

	assert.False(t, v.PricingValid)
	assert.False(t, v.IsValid())

	found := false
	for _, e := range v.Exceptions {
		if e.Type == domain.ExceptionPricing && e.Severity.AtLeast(domain.SeverityError) {
			found = true
		}
	}
	assert.True(t, found, "expected a pricing exception with severity >= error")
}

func TestValidate_TotalLessThanFee(t *testing.T) {
	order := validOrder()
	order.TotalAmount = 100
	order.FeeAmount = 450

	v := Validate(order)
	assert.False(t, v.PricingValid)
}

func TestValidate_NilTechFeeAutoFixedWithoutException(t *testing.T) {
	order := validOrder()
	order.TechFee = nil

	v := Validate(order)

	// Фикс записан до валидации
	require.Len(t, v.AutoFixes, 1)
	fix := v.AutoFixes[0]
	assert.Equal(t, "tech_fee", fix.Field)
	assert.Equal(t, "null", fix.OldValue)
	assert.Equal(t, "0", fix.NewValue)

	// И поэтому tech_fee не порождает exception: заказ валиден
	assert.True(t, v.IsValid())
	for _, e := range v.Exceptions {
		assert.NotEqual(t, "tech_fee", e.Field)
	}
}

func TestValidate_NegativeTechFee(t *testing.T) {
	order := validOrder()
	neg := -5.0
	order.TechFee = &neg

	v := Validate(order)
	assert.False(t, v.PricingValid)
}

func TestValidate_BillTypeCredit(t *testing.T) {
	t.Run("approved passes", func(t *testing.T) {
		order := validOrder()
		order.BillType = true
		order.PaymentMethod = domain.PaymentBill
		order.CreditApproved = true

		v := Validate(order)
		assert.True(t, v.CreditValid)
	})

	t.Run("unapproved is critical", func(t *testing.T) {
		order := validOrder()
		order.BillType = true
		order.PaymentMethod = domain.PaymentBill

		v := Validate(order)
		assert.False(t, v.CreditValid)
		require.Len(t, v.Exceptions, 1)
		assert.Equal(t, domain.ExceptionCredit, v.Exceptions[0].Type)
		assert.Equal(t, domain.SeverityCritical, v.Exceptions[0].Severity)
	})

	t.Run("non-bill order skips credit check", func(t *testing.T) {
		order := validOrder()
		order.BillType = false
		order.CreditApproved = false

		v := Validate(order)
		assert.True(t, v.CreditValid)
	})
}

func TestValidate_MissingRequirements(t *testing.T) {
	order := validOrder()
	order.PropertyAddress = ""
	order.BorrowerContact = ""

	v := Validate(order)

	assert.False(t, v.RequirementsValid)
	assert.Len(t, v.Exceptions, 2)
	for _, e := range v.Exceptions {
		assert.Equal(t, domain.ExceptionRequirements, e.Type)
		assert.Equal(t, domain.SeverityError, e.Severity)
	}
}

type memOrderRepo struct {
	orders      map[string]*domain.Order
	validations []domain.OrderValidation
}

func (r *memOrderRepo) GetOrder(_ context.Context, _, orderID string) (*domain.Order, error) {
	return r.orders[orderID], nil
}

func (r *memOrderRepo) SaveValidation(_ context.Context, _ string, v domain.OrderValidation) error {
	r.validations = append(r.validations, v)
	return nil
}

func (r *memOrderRepo) UnresolvedExceptions(_ context.Context, _ string) ([]domain.ValidationException, error) {
	var out []domain.ValidationException
	for _, v := range r.validations {
		out = append(out, v.Exceptions...)
	}
	return out, nil
}

func TestProcessNewOrder_PersistsAndQueuesExceptions(t *testing.T) {
	order := validOrder()
	order.FeeAmount = 0
	repo := &memOrderRepo{orders: map[string]*domain.Order{"order-1": order}}
	p := NewPipeline(repo, zap.NewNop())
	ctx := context.Background()

	v, err := p.ProcessNewOrder(ctx, "tenant-1", "order-1")
	require.NoError(t, err)
	assert.False(t, v.IsValid())
	require.Len(t, repo.validations, 1)

	// Проблема не потерялась: лежит в очереди на ревью
	queued, err := p.UnresolvedExceptions(ctx, "tenant-1")
	require.NoError(t, err)
	assert.NotEmpty(t, queued)
}
