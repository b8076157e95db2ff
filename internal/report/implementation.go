// internal/report/implementation.go
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"swimclub/internal/billing"
	"swimclub/internal/ledger"
	"swimclub/internal/membership"
)

type engine struct {
	members    membership.Finder
	bills      ledger.BillReader
	fees       billing.FeeCalculator
	classifier *Classifier
	log        logrus.FieldLogger
}

// NewService builds the report engine over the member directory and the
// ledger's bills.
func NewService(members membership.Finder, bills ledger.BillReader, fees billing.FeeCalculator, clock billing.Clock, log logrus.FieldLogger) Service {
	return &engine{
		members:    members,
		bills:      bills,
		fees:       fees,
		classifier: NewClassifier(bills, clock),
		log:        log,
	}
}

func (e *engine) TotalExpected(members []membership.Member) float64 {
	var total float64
	for _, m := range members {
		total += e.fees.ComputeFee(m)
	}
	return total
}

func (e *engine) MembersWithStatus(ctx context.Context, members []membership.Member, status billing.MemberPaymentStatus) []membership.Member {
	out := []membership.Member{}
	for _, m := range members {
		if e.classifier.Classify(ctx, m) == status {
			out = append(out, m)
		}
	}
	return out
}

func (e *engine) MembersWithBillStatus(_ context.Context, members []membership.Member, status billing.BillingStatus) []membership.Member {
	out := []membership.Member{}
	for _, m := range members {
		for _, b := range e.bills.FindBillsByMember(m.ID) {
			if b.Status == status {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Dashboard lists members for the treasurer. "complete" selects members with
// every bill paid. "pending" selects members with an unpaid balance that is
// not yet overdue.
func (e *engine) Dashboard(ctx context.Context, members []membership.Member, filter string) ([]DashboardLine, error) {
	var wanted []billing.MemberPaymentStatus
	switch {
	case strings.EqualFold(filter, FilterComplete):
		wanted = []billing.MemberPaymentStatus{billing.AllBillsPaid}
	case strings.EqualFold(filter, FilterPending):
		wanted = []billing.MemberPaymentStatus{billing.PendingPayment, billing.MissingPayment}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, filter)
	}

	lines := []DashboardLine{}
	for _, m := range members {
		status := e.classifier.Classify(ctx, m)
		for _, w := range wanted {
			if status == w {
				lines = append(lines, DashboardLine{
					MemberID: m.ID,
					Name:     m.Name,
					Phone:    m.Phone,
					Fee:      e.fees.ComputeFee(m),
					Status:   status,
				})
				break
			}
		}
	}

	e.log.WithFields(logrus.Fields{
		"filter":  strings.ToLower(filter),
		"members": len(members),
		"matched": len(lines),
	}).Debug("dashboard built")
	return lines, nil
}

func (e *engine) FeeFor(ctx context.Context, memberID uuid.UUID) (float64, error) {
	m, err := e.members.FindByID(ctx, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to find member: %w", err)
	}
	return e.fees.ComputeFee(*m), nil
}

func (e *engine) StatusOf(ctx context.Context, memberID uuid.UUID) (billing.MemberPaymentStatus, error) {
	m, err := e.members.FindByID(ctx, memberID)
	if err != nil {
		return "", fmt.Errorf("failed to find member: %w", err)
	}
	return e.classifier.Classify(ctx, *m), nil
}
