package billing

import (
	"time"

	"github.com/google/uuid"
)

// BillingPeriodYears is the length of one billing cycle.
const BillingPeriodYears = 1

// BillingStatus is the payment state of a single bill.
type BillingStatus string

const (
	StatusNotPaid       BillingStatus = "NOT_PAID"
	StatusPartiallyPaid BillingStatus = "PARTIALLY_PAID"
	StatusPaid          BillingStatus = "PAID"
	StatusOverdue       BillingStatus = "OVERDUE"
)

// PaymentStatus is the processing state of a payment.
type PaymentStatus string

const (
	PaymentComplete PaymentStatus = "COMPLETE"
	PaymentPending  PaymentStatus = "PENDING"
	PaymentFailed   PaymentStatus = "FAILED"
)

// MemberPaymentStatus classifies a member across all of their bills.
type MemberPaymentStatus string

const (
	AllBillsPaid   MemberPaymentStatus = "ALL_BILLS_PAID"
	MissingPayment MemberPaymentStatus = "MISSING_PAYMENT"
	OverdueBills   MemberPaymentStatus = "OVERDUE_BILLS"
	PendingPayment MemberPaymentStatus = "PENDING_PAYMENT"
)

// ParseMemberPaymentStatus validates a status name.
func ParseMemberPaymentStatus(s string) (MemberPaymentStatus, bool) {
	switch st := MemberPaymentStatus(s); st {
	case AllBillsPaid, MissingPayment, OverdueBills, PendingPayment:
		return st, true
	}
	return "", false
}

// ParseBillingStatus validates a billing status name.
func ParseBillingStatus(s string) (BillingStatus, bool) {
	switch st := BillingStatus(s); st {
	case StatusNotPaid, StatusPartiallyPaid, StatusPaid, StatusOverdue:
		return st, true
	}
	return "", false
}

// Payment is a single amount applied against one bill. Payments are never
// changed after they are recorded.
type Payment struct {
	ID          int64         `json:"id"`
	Status      PaymentStatus `json:"status"`
	MemberID    uuid.UUID     `json:"member_id"`
	PaymentDate time.Time     `json:"payment_date"`
	Amount      float64       `json:"amount"`
	BillingID   int64         `json:"billing_id"`
}

// Billing is one billing cycle's charge for a member.
type Billing struct {
	ID          int64         `json:"id"`
	MemberID    uuid.UUID     `json:"member_id"`
	AmountDue   float64       `json:"amount_due"`
	AmountPaid  float64       `json:"amount_paid"`
	BillingDate time.Time     `json:"billing_date"`
	DueDate     time.Time     `json:"due_date"`
	Status      BillingStatus `json:"status"`
	PaymentIDs  []int64       `json:"payment_ids"`
}

// PaymentOutcome reports the result of applying a payment.
type PaymentOutcome struct {
	Payment       Payment       `json:"payment"`
	Status        BillingStatus `json:"status"`
	MissingAmount float64       `json:"missing_amount,omitempty"`
	NextBill      *Billing      `json:"next_bill,omitempty"`
}
