// internal/ledger/implementation.go
package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"swimclub/internal/billing"
	"swimclub/internal/eventstore"
	"swimclub/internal/membership"
)

const instrumentationName = "swimclub/ledger"

// ledger implements Service in memory. Every mutation holds mu for its whole
// duration, including the journal write, so ids and versions stay ordered.
type ledger struct {
	mu           sync.Mutex
	bills        map[int64]*billing.Billing
	billOrder    []int64
	payments     map[int64]billing.Payment
	paymentOrder []int64

	lastBillID    atomic.Int64
	lastPaymentID atomic.Int64

	clock   billing.Clock
	members membership.Finder
	journal Journal
	log     logrus.FieldLogger
	tracer  trace.Tracer

	paymentCounter metric.Int64Counter
	billCounter    metric.Int64Counter
}

// Option configures the ledger.
type Option func(*ledger)

// WithMembers makes ApplyPayment reject payers unknown to the directory.
func WithMembers(f membership.Finder) Option {
	return func(l *ledger) { l.members = f }
}

// WithJournal records every mutation before it is committed.
func WithJournal(j Journal) Option {
	return func(l *ledger) { l.journal = j }
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *ledger) { l.log = log }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *ledger) { l.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(l *ledger) { l.initCounters(mp) }
}

// NewService creates an empty ledger reading dates from clock.
func NewService(clock billing.Clock, opts ...Option) Service {
	l := &ledger{
		bills:    make(map[int64]*billing.Billing),
		payments: make(map[int64]billing.Payment),
		clock:    clock,
		log:      logrus.StandardLogger(),
		tracer:   otel.Tracer(instrumentationName),
	}
	l.initCounters(otel.GetMeterProvider())
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ledger) initCounters(mp metric.MeterProvider) {
	meter := mp.Meter(instrumentationName)

	payments, err := meter.Int64Counter("swimclub.ledger.payments",
		metric.WithDescription("Payments applied, by resulting bill status"))
	if err != nil {
		payments = noop.Int64Counter{}
	}
	bills, err := meter.Int64Counter("swimclub.ledger.bills",
		metric.WithDescription("Bills issued, by kind"))
	if err != nil {
		bills = noop.Int64Counter{}
	}
	l.paymentCounter = payments
	l.billCounter = bills
}

// CreateInitialBill issues a member's first bill.
func (l *ledger) CreateInitialBill(ctx context.Context, memberID uuid.UUID, amount float64, billingDate, dueDate time.Time) (billing.Billing, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.create_initial_bill",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.Float64("bill.amount", amount),
		),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	bill, err := billing.NewBilling(l.lastBillID.Load()+1, memberID, amount, billingDate, dueDate)
	if err != nil {
		return billing.Billing{}, fail(span, err)
	}

	event, err := eventstore.NewEvent(EventBillIssued, issuedEvent(bill, 0))
	if err != nil {
		return billing.Billing{}, fail(span, err)
	}
	if err := l.record(ctx, memberID, event); err != nil {
		return billing.Billing{}, fail(span, err)
	}

	l.storeBill(bill)
	l.billCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "initial")))
	span.SetAttributes(attribute.Int64("bill.id", bill.ID))

	l.log.WithFields(logrus.Fields{
		"bill_id":   bill.ID,
		"member_id": memberID,
		"amount":    amount,
		"due_date":  bill.DueDate.Format(time.DateOnly),
	}).Info("bill issued")

	return bill.Clone(), nil
}

// ApplyPayment records a payment against a bill and advances the bill's
// status. When the bill becomes PAID its successor is issued in the same step.
func (l *ledger) ApplyPayment(ctx context.Context, billingID int64, amount float64, memberID uuid.UUID) (billing.PaymentOutcome, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.apply_payment",
		trace.WithAttributes(
			attribute.Int64("bill.id", billingID),
			attribute.String("member.id", memberID.String()),
			attribute.Float64("payment.amount", amount),
		),
	)
	defer span.End()

	if amount <= 0 {
		return billing.PaymentOutcome{}, fail(span, fmt.Errorf("%w: payment of %.2f", billing.ErrInvalidAmount, amount))
	}
	if l.members != nil {
		if _, err := l.members.FindByID(ctx, memberID); err != nil {
			return billing.PaymentOutcome{}, fail(span, fmt.Errorf("failed to resolve payer: %w", err))
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.bills[billingID]
	if !ok {
		return billing.PaymentOutcome{}, fail(span, fmt.Errorf("bill %d: %w", billingID, billing.ErrBillNotFound))
	}

	today := l.clock.Today()
	payment := billing.Payment{
		ID:          l.lastPaymentID.Load() + 1,
		Status:      billing.PaymentComplete,
		MemberID:    memberID,
		PaymentDate: today,
		Amount:      amount,
		BillingID:   billingID,
	}

	updated := current.Clone()
	if err := updated.ApplyPayment(payment, today); err != nil {
		return billing.PaymentOutcome{}, fail(span, err)
	}

	applied, err := eventstore.NewEvent(EventPaymentApplied, PaymentAppliedEvent{
		PaymentID:   payment.ID,
		BillID:      billingID,
		PayerID:     memberID,
		Amount:      amount,
		PaymentDate: today,
		AmountPaid:  updated.AmountPaid,
		Status:      updated.Status,
	})
	if err != nil {
		return billing.PaymentOutcome{}, fail(span, err)
	}
	events := []eventstore.Event{applied}

	var next *billing.Billing
	if updated.Status == billing.StatusPaid && current.Status != billing.StatusPaid {
		next, err = updated.Next(l.lastBillID.Load() + 1)
		if err != nil {
			return billing.PaymentOutcome{}, fail(span, err)
		}
		issued, err := eventstore.NewEvent(EventBillIssued, issuedEvent(next, updated.ID))
		if err != nil {
			return billing.PaymentOutcome{}, fail(span, err)
		}
		events = append(events, issued)
	}

	if err := l.record(ctx, current.MemberID, events...); err != nil {
		return billing.PaymentOutcome{}, fail(span, err)
	}

	*current = updated
	l.payments[payment.ID] = payment
	l.paymentOrder = append(l.paymentOrder, payment.ID)
	l.lastPaymentID.Store(payment.ID)

	outcome := billing.PaymentOutcome{Payment: payment, Status: updated.Status}
	if updated.Status != billing.StatusPaid {
		outcome.MissingAmount = updated.MissingAmount()
	}
	if next != nil {
		l.storeBill(next)
		l.billCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "successor")))
		clone := next.Clone()
		outcome.NextBill = &clone
	}

	l.paymentCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(updated.Status))))
	span.SetAttributes(
		attribute.Int64("payment.id", payment.ID),
		attribute.String("bill.status", string(updated.Status)),
	)

	entry := l.log.WithFields(logrus.Fields{
		"bill_id":    billingID,
		"member_id":  memberID,
		"payment_id": payment.ID,
		"amount":     amount,
		"status":     updated.Status,
	})
	switch {
	case next != nil:
		entry.WithField("next_bill_id", next.ID).Info("bill paid, next bill issued")
	case outcome.MissingAmount > 0:
		entry.WithField("missing_amount", outcome.MissingAmount).Info("payment registered")
	default:
		entry.Info("payment registered")
	}

	return outcome, nil
}

// CreateNextBill issues the successor of a paid bill. ApplyPayment calls
// this path itself; it is exposed for imports of historical data.
func (l *ledger) CreateNextBill(ctx context.Context, paid billing.Billing) (billing.Billing, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.create_next_bill",
		trace.WithAttributes(attribute.Int64("bill.predecessor_id", paid.ID)),
	)
	defer span.End()

	if paid.Status != billing.StatusPaid {
		return billing.Billing{}, fail(span, fmt.Errorf("%w: bill %d is %s, not PAID", billing.ErrInvalidBilling, paid.ID, paid.Status))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := paid.Next(l.lastBillID.Load() + 1)
	if err != nil {
		return billing.Billing{}, fail(span, err)
	}
	event, err := eventstore.NewEvent(EventBillIssued, issuedEvent(next, paid.ID))
	if err != nil {
		return billing.Billing{}, fail(span, err)
	}
	if err := l.record(ctx, next.MemberID, event); err != nil {
		return billing.Billing{}, fail(span, err)
	}

	l.storeBill(next)
	l.billCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "successor")))
	span.SetAttributes(attribute.Int64("bill.id", next.ID))
	return next.Clone(), nil
}

// RefreshOverdue marks every unpaid bill past its due date as OVERDUE and
// returns how many bills changed.
func (l *ledger) RefreshOverdue(ctx context.Context) (int, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.refresh_overdue")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.clock.Today()
	changed := make(map[uuid.UUID][]*billing.Billing)
	var owners []uuid.UUID
	for _, id := range l.billOrder {
		b := l.bills[id]
		if !b.IsOverdue(today) || b.Status == billing.StatusOverdue {
			continue
		}
		if _, seen := changed[b.MemberID]; !seen {
			owners = append(owners, b.MemberID)
		}
		changed[b.MemberID] = append(changed[b.MemberID], b)
	}

	updated := 0
	for _, owner := range owners {
		bills := changed[owner]
		events := make([]eventstore.Event, 0, len(bills))
		for _, b := range bills {
			event, err := eventstore.NewEvent(EventBillOverdue, BillOverdueEvent{BillID: b.ID, DueDate: b.DueDate})
			if err != nil {
				return updated, fail(span, err)
			}
			events = append(events, event)
		}
		if err := l.record(ctx, owner, events...); err != nil {
			return updated, fail(span, err)
		}
		for _, b := range bills {
			b.RefreshOverdue(today)
			updated++
		}
	}

	span.SetAttributes(attribute.Int("bills.updated", updated))
	if updated > 0 {
		l.log.WithFields(logrus.Fields{
			"updated": updated,
			"today":   today.Format(time.DateOnly),
		}).Info("overdue bills refreshed")
	}
	return updated, nil
}

func (l *ledger) FindBill(id int64) (billing.Billing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bills[id]
	if !ok {
		return billing.Billing{}, fmt.Errorf("bill %d: %w", id, billing.ErrBillNotFound)
	}
	return b.Clone(), nil
}

func (l *ledger) FindPayment(id int64) (billing.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.payments[id]
	if !ok {
		return billing.Payment{}, fmt.Errorf("payment %d: %w", id, billing.ErrPaymentNotFound)
	}
	return p, nil
}

func (l *ledger) FindBillsByMember(memberID uuid.UUID) []billing.Billing {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []billing.Billing{}
	for _, id := range l.billOrder {
		if b := l.bills[id]; b.MemberID == memberID {
			out = append(out, b.Clone())
		}
	}
	return out
}

func (l *ledger) FindAllBills() []billing.Billing {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]billing.Billing, 0, len(l.billOrder))
	for _, id := range l.billOrder {
		out = append(out, l.bills[id].Clone())
	}
	return out
}

func (l *ledger) FindPaymentsByMember(memberID uuid.UUID) []billing.Payment {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []billing.Payment{}
	for _, id := range l.paymentOrder {
		if p := l.payments[id]; p.MemberID == memberID {
			out = append(out, p)
		}
	}
	return out
}

func (l *ledger) FindAllPayments() []billing.Payment {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]billing.Payment, 0, len(l.paymentOrder))
	for _, id := range l.paymentOrder {
		out = append(out, l.payments[id])
	}
	return out
}

// storeBill commits a bill and its id. Callers hold mu.
func (l *ledger) storeBill(b *billing.Billing) {
	l.bills[b.ID] = b
	l.billOrder = append(l.billOrder, b.ID)
	l.lastBillID.Store(b.ID)
}

func (l *ledger) record(ctx context.Context, memberID uuid.UUID, events ...eventstore.Event) error {
	if l.journal == nil {
		return nil
	}
	if err := l.journal.Record(ctx, memberID, events); err != nil {
		return fmt.Errorf("failed to journal %d event(s): %w", len(events), err)
	}
	return nil
}

func issuedEvent(b *billing.Billing, predecessor int64) BillIssuedEvent {
	return BillIssuedEvent{
		BillID:        b.ID,
		MemberID:      b.MemberID,
		Amount:        b.AmountDue,
		BillingDate:   b.BillingDate,
		DueDate:       b.DueDate,
		PredecessorID: predecessor,
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
