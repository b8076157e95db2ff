package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewBilling creates an unpaid bill. The amount must be positive and both
// dates must be set.
func NewBilling(id int64, memberID uuid.UUID, amount float64, billingDate, dueDate time.Time) (*Billing, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount %.2f must be positive", ErrInvalidBilling, amount)
	}
	if billingDate.IsZero() || dueDate.IsZero() {
		return nil, fmt.Errorf("%w: billing date and due date are required", ErrInvalidBilling)
	}
	return &Billing{
		ID:          id,
		MemberID:    memberID,
		AmountDue:   amount,
		BillingDate: Date(billingDate),
		DueDate:     Date(dueDate),
		Status:      StatusNotPaid,
		PaymentIDs:  []int64{},
	}, nil
}

// DueDateFor returns the due date of a bill issued on billingDate.
func DueDateFor(billingDate time.Time) time.Time {
	return AddYears(billingDate, BillingPeriodYears)
}

// ApplyPayment adds the payment to the bill and recomputes its status. A
// non-positive amount is rejected and the bill is left untouched.
func (b *Billing) ApplyPayment(p Payment, today time.Time) error {
	if p.Amount <= 0 {
		return fmt.Errorf("%w: payment of %.2f", ErrInvalidAmount, p.Amount)
	}

	b.PaymentIDs = append(b.PaymentIDs, p.ID)
	b.AmountPaid += p.Amount

	if b.AmountPaid >= b.AmountDue {
		// PAID wins over OVERDUE, even for late payments.
		b.Status = StatusPaid
		return nil
	}
	if b.AmountPaid > 0 {
		b.Status = StatusPartiallyPaid
	}
	b.RefreshOverdue(today)
	return nil
}

// MissingAmount is what is still owed, never negative.
func (b *Billing) MissingAmount() float64 {
	if missing := b.AmountDue - b.AmountPaid; missing > 0 {
		return missing
	}
	return 0
}

// IsOverdue reports whether today is past the due date and the bill is not
// paid. It ignores the stored status otherwise.
func (b *Billing) IsOverdue(today time.Time) bool {
	return Date(today).After(b.DueDate) && b.Status != StatusPaid
}

// RefreshOverdue marks the bill OVERDUE when IsOverdue holds and reports
// whether the stored status changed.
func (b *Billing) RefreshOverdue(today time.Time) bool {
	if !b.IsOverdue(today) || b.Status == StatusOverdue {
		return false
	}
	b.Status = StatusOverdue
	return true
}

// Next returns the successor of a paid bill: same amount, both dates moved
// one billing period forward.
func (b *Billing) Next(id int64) (*Billing, error) {
	return NewBilling(id, b.MemberID, b.AmountDue,
		AddYears(b.BillingDate, BillingPeriodYears),
		AddYears(b.DueDate, BillingPeriodYears))
}

// Clone returns a deep copy of the bill.
func (b Billing) Clone() Billing {
	b.PaymentIDs = append([]int64(nil), b.PaymentIDs...)
	if b.PaymentIDs == nil {
		b.PaymentIDs = []int64{}
	}
	return b
}
