package domain

// ExceptionType — категория проблемы валидации заказа.
type ExceptionType string

const (
	ExceptionPricing      ExceptionType = "pricing"
	ExceptionCredit       ExceptionType = "credit"
	ExceptionRequirements ExceptionType = "requirements"
	ExceptionOther        ExceptionType = "other"
)

// Severity — упорядоченная серьезность (info < warning < error < critical).
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// AtLeast true, если s не мягче min.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

// PaymentMethod заказа.
type PaymentMethod string

const (
	PaymentCard    PaymentMethod = "card"
	PaymentBill    PaymentMethod = "bill"
	PaymentEscrow  PaymentMethod = "escrow"
	PaymentUnknown PaymentMethod = ""
)

// Order — входной work order. TechFee — указатель: NULL в источнике
// это не ноль, это отсутствие значения (кандидат на auto-fix).
type Order struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	FeeAmount   float64  `json:"fee_amount"`
	TotalAmount float64  `json:"total_amount"`
	TechFee     *float64 `json:"tech_fee"`

	PaymentMethod  PaymentMethod `json:"payment_method"`
	BillType       bool          `json:"bill_type"`
	CreditApproved bool          `json:"credit_approved"`

	PropertyAddress string `json:"property_address"`
	BorrowerContact string `json:"borrower_contact"`
	PropertyContact string `json:"property_contact"`
}

// AutoFix — зафиксированная безопасная автокоррекция.
// Применяется ДО валидации, поэтому исправленное поле не порождает exception.
type AutoFix struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
	Reason   string `json:"reason"`
}

// ValidationException — типизированная проблема, уходящая в очередь на ревью.
type ValidationException struct {
	OrderID  string        `json:"order_id"`
	Type     ExceptionType `json:"type"`
	Severity Severity      `json:"severity"`
	Field    string        `json:"field,omitempty"`
	Message  string        `json:"message"`
}

// OrderValidation — итог пайплайна по одному заказу.
type OrderValidation struct {
	OrderID           string                `json:"order_id"`
	PricingValid      bool                  `json:"pricing_valid"`
	CreditValid       bool                  `json:"credit_valid"`
	RequirementsValid bool                  `json:"requirements_valid"`
	AutoFixes         []AutoFix             `json:"auto_fixes"`
	Exceptions        []ValidationException `json:"exceptions"`
}

// IsValid — все три проверки прошли.
func (v OrderValidation) IsValid() bool {
	return v.PricingValid && v.CreditValid && v.RequirementsValid
}
