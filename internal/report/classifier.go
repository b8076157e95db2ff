// internal/report/classifier.go
package report

import (
	"context"
	"time"

	"swimclub/internal/billing"
	"swimclub/internal/ledger"
	"swimclub/internal/membership"
)

// Classifier derives a member's overall payment status from their bills.
type Classifier struct {
	bills ledger.BillReader
	clock billing.Clock
}

func NewClassifier(bills ledger.BillReader, clock billing.Clock) *Classifier {
	return &Classifier{bills: bills, clock: clock}
}

// Classify returns exactly one status per member. Precedence: all paid (or
// no bills), then overdue, then missing payment, then pending payment.
// Overdue is judged against today's date as well as the stored status.
func (c *Classifier) Classify(_ context.Context, m membership.Member) billing.MemberPaymentStatus {
	return classify(c.bills.FindBillsByMember(m.ID), c.clock.Today())
}

func classify(bills []billing.Billing, today time.Time) billing.MemberPaymentStatus {
	var overdue, missing, pending bool
	for i := range bills {
		b := &bills[i]
		switch {
		case b.Status == billing.StatusPaid:
		case b.Status == billing.StatusOverdue || b.IsOverdue(today):
			overdue = true
		case b.Status == billing.StatusNotPaid:
			missing = true
		default:
			pending = true
		}
	}

	switch {
	case overdue:
		return billing.OverdueBills
	case missing:
		return billing.MissingPayment
	case pending:
		return billing.PendingPayment
	default:
		return billing.AllBillsPaid
	}
}
