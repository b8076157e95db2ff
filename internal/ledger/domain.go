// internal/ledger/domain.go
package ledger

import (
	"time"

	"github.com/google/uuid"

	"swimclub/internal/billing"
)

// AggregateType is the journal aggregate for a member's bills and payments.
const AggregateType = "billing_account"

// Journal event types.
const (
	EventBillIssued     = "BillIssued"
	EventPaymentApplied = "PaymentApplied"
	EventBillOverdue    = "BillOverdue"
)

// BillIssuedEvent is journaled when a bill is created.
type BillIssuedEvent struct {
	BillID        int64     `json:"bill_id"`
	MemberID      uuid.UUID `json:"member_id"`
	Amount        float64   `json:"amount"`
	BillingDate   time.Time `json:"billing_date"`
	DueDate       time.Time `json:"due_date"`
	PredecessorID int64     `json:"predecessor_id,omitempty"`
}

// PaymentAppliedEvent is journaled for every accepted payment.
type PaymentAppliedEvent struct {
	PaymentID   int64                 `json:"payment_id"`
	BillID      int64                 `json:"bill_id"`
	PayerID     uuid.UUID             `json:"payer_id"`
	Amount      float64               `json:"amount"`
	PaymentDate time.Time             `json:"payment_date"`
	AmountPaid  float64               `json:"amount_paid"`
	Status      billing.BillingStatus `json:"status"`
}

// BillOverdueEvent is journaled when the refresh marks a bill overdue.
type BillOverdueEvent struct {
	BillID  int64     `json:"bill_id"`
	DueDate time.Time `json:"due_date"`
}
