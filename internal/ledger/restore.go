// internal/ledger/restore.go
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"swimclub/internal/billing"
	"swimclub/internal/eventstore"
)

// ErrCorruptJournal is returned when a journaled stream cannot be replayed.
var ErrCorruptJournal = errors.New("corrupt journal")

// Restore replays every journaled member stream into an empty ledger and
// resumes the id counters after the highest journaled ids. Nothing is
// committed unless every stream replays cleanly.
func (l *ledger) Restore(ctx context.Context, source Source) (int, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.restore")
	defer span.End()

	members, err := source.Members(ctx)
	if err != nil {
		return 0, fail(span, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.bills) > 0 || len(l.payments) > 0 {
		return 0, fail(span, fmt.Errorf("cannot restore into a ledger holding %d bills", len(l.bills)))
	}

	r := replay{
		bills:    make(map[int64]*billing.Billing),
		payments: make(map[int64]billing.Payment),
	}
	for _, member := range members {
		events, err := source.History(ctx, member)
		if err != nil {
			return 0, fail(span, err)
		}
		for _, e := range events {
			if err := r.apply(e); err != nil {
				return 0, fail(span, fmt.Errorf("member %s version %d: %w", member, e.Version, err))
			}
		}
	}

	l.bills = r.bills
	l.payments = r.payments
	l.billOrder = sortedKeys(r.bills)
	l.paymentOrder = sortedKeys(r.payments)
	if n := len(l.billOrder); n > 0 {
		l.lastBillID.Store(l.billOrder[n-1])
	}
	if n := len(l.paymentOrder); n > 0 {
		l.lastPaymentID.Store(l.paymentOrder[n-1])
	}

	span.SetAttributes(
		attribute.Int("members.replayed", len(members)),
		attribute.Int("bills.restored", len(l.bills)),
		attribute.Int("payments.restored", len(l.payments)),
	)
	l.log.WithFields(logrus.Fields{
		"members":      len(members),
		"bills":        len(l.bills),
		"payments":     len(l.payments),
		"last_bill_id": l.lastBillID.Load(),
	}).Info("ledger restored from journal")

	return len(l.bills), nil
}

type replay struct {
	bills    map[int64]*billing.Billing
	payments map[int64]billing.Payment
}

// apply folds one event into the replay state. Event types the ledger does
// not own, such as registrations, are skipped.
func (r *replay) apply(e eventstore.Event) error {
	switch e.EventType {
	case EventBillIssued:
		var ev BillIssuedEvent
		if err := json.Unmarshal(e.EventData, &ev); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrCorruptJournal, e.EventType, err)
		}
		if _, dup := r.bills[ev.BillID]; dup {
			return fmt.Errorf("%w: bill %d issued twice", ErrCorruptJournal, ev.BillID)
		}
		bill, err := billing.NewBilling(ev.BillID, ev.MemberID, ev.Amount, ev.BillingDate, ev.DueDate)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptJournal, err)
		}
		r.bills[bill.ID] = bill

	case EventPaymentApplied:
		var ev PaymentAppliedEvent
		if err := json.Unmarshal(e.EventData, &ev); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrCorruptJournal, e.EventType, err)
		}
		bill, ok := r.bills[ev.BillID]
		if !ok {
			return fmt.Errorf("%w: payment %d for unknown bill %d", ErrCorruptJournal, ev.PaymentID, ev.BillID)
		}
		if _, dup := r.payments[ev.PaymentID]; dup {
			return fmt.Errorf("%w: payment %d applied twice", ErrCorruptJournal, ev.PaymentID)
		}
		r.payments[ev.PaymentID] = billing.Payment{
			ID:          ev.PaymentID,
			Status:      billing.PaymentComplete,
			MemberID:    ev.PayerID,
			PaymentDate: billing.Date(ev.PaymentDate),
			Amount:      ev.Amount,
			BillingID:   ev.BillID,
		}
		bill.PaymentIDs = append(bill.PaymentIDs, ev.PaymentID)
		bill.AmountPaid = ev.AmountPaid
		bill.Status = ev.Status

	case EventBillOverdue:
		var ev BillOverdueEvent
		if err := json.Unmarshal(e.EventData, &ev); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrCorruptJournal, e.EventType, err)
		}
		bill, ok := r.bills[ev.BillID]
		if !ok {
			return fmt.Errorf("%w: overdue mark for unknown bill %d", ErrCorruptJournal, ev.BillID)
		}
		if bill.Status != billing.StatusPaid {
			bill.Status = billing.StatusOverdue
		}
	}
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var _ Source = (*EventJournal)(nil)

