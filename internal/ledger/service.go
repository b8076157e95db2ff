// internal/ledger/service.go
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"swimclub/internal/billing"
)

// Service defines the payment ledger: the single owner of every bill and
// payment. Read methods return copies.
type Service interface {
	CreateInitialBill(ctx context.Context, memberID uuid.UUID, amount float64, billingDate, dueDate time.Time) (billing.Billing, error)
	ApplyPayment(ctx context.Context, billingID int64, amount float64, memberID uuid.UUID) (billing.PaymentOutcome, error)
	CreateNextBill(ctx context.Context, paid billing.Billing) (billing.Billing, error)
	RefreshOverdue(ctx context.Context) (int, error)
	Restore(ctx context.Context, source Source) (int, error)

	FindBill(id int64) (billing.Billing, error)
	FindPayment(id int64) (billing.Payment, error)
	FindBillsByMember(memberID uuid.UUID) []billing.Billing
	FindAllBills() []billing.Billing
	FindPaymentsByMember(memberID uuid.UUID) []billing.Payment
	FindAllPayments() []billing.Payment
}

// BillReader is the read-only view used by reporting.
type BillReader interface {
	FindBillsByMember(memberID uuid.UUID) []billing.Billing
}
