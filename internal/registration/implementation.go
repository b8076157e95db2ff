// internal/registration/implementation.go
package registration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"swimclub/internal/billing"
	"swimclub/internal/eventstore"
	"swimclub/internal/ledger"
	"swimclub/internal/membership"
)

type service struct {
	members     membership.Store
	bills       BillIssuer
	fees        billing.FeeCalculator
	clock       billing.Clock
	journal     ledger.Journal
	log         logrus.FieldLogger
	rateLimiter *rate.Limiter
}

// Config wires the registration service. Journal is optional.
type Config struct {
	Members       membership.Store
	Bills         BillIssuer
	Fees          billing.FeeCalculator
	Clock         billing.Clock
	Journal       ledger.Journal
	Logger        logrus.FieldLogger
	RatePerMinute int
}

// NewService creates a registration service allowing RatePerMinute
// registrations per minute with an equal burst.
func NewService(cfg Config) Service {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 5
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &service{
		members:     cfg.Members,
		bills:       cfg.Bills,
		fees:        cfg.Fees,
		clock:       cfg.Clock,
		journal:     cfg.Journal,
		log:         log,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// Register stores the member and issues the first bill, dated today and due
// one billing period later. The member is removed again if billing fails.
func (s *service) Register(ctx context.Context, in Input) (membership.Member, billing.Billing, error) {
	if !s.rateLimiter.Allow() {
		return membership.Member{}, billing.Billing{}, ErrRateLimited
	}

	today := s.clock.Today()
	member := membership.Member{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Age:       in.Age,
		Category:  in.Category,
		Level:     membership.LevelForAge(in.Age),
		Status:    in.Status,
		CreatedAt: today,
	}
	if err := membership.Validate(member); err != nil {
		return membership.Member{}, billing.Billing{}, err
	}

	fee := s.fees.ComputeFee(member)
	if fee <= 0 {
		return membership.Member{}, billing.Billing{}, fmt.Errorf("%w: no fee for status %q", billing.ErrInvalidAmount, member.Status)
	}

	if err := s.members.Save(ctx, member); err != nil {
		return membership.Member{}, billing.Billing{}, fmt.Errorf("failed to save member: %w", err)
	}

	if err := s.recordRegistration(ctx, member); err != nil {
		s.rollback(ctx, member.ID)
		return membership.Member{}, billing.Billing{}, err
	}

	bill, err := s.bills.CreateInitialBill(ctx, member.ID, fee, today, billing.DueDateFor(today))
	if err != nil {
		s.rollback(ctx, member.ID)
		return membership.Member{}, billing.Billing{}, fmt.Errorf("failed to issue first bill: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"member_id": member.ID,
		"level":     member.Level,
		"category":  member.Category,
		"status":    member.Status,
		"bill_id":   bill.ID,
		"fee":       fee,
	}).Info("member registered")

	return member, bill, nil
}

func (s *service) recordRegistration(ctx context.Context, m membership.Member) error {
	if s.journal == nil {
		return nil
	}
	event, err := eventstore.NewEvent(EventMemberRegistered, membership.MemberRegisteredEvent{
		ID:       m.ID,
		Name:     m.Name,
		Category: m.Category,
		Level:    m.Level,
		Status:   m.Status,
	})
	if err != nil {
		return err
	}
	if err := s.journal.Record(ctx, m.ID, []eventstore.Event{event}); err != nil {
		return fmt.Errorf("failed to journal registration: %w", err)
	}
	return nil
}

func (s *service) rollback(ctx context.Context, id uuid.UUID) {
	if err := s.members.Delete(ctx, id); err != nil {
		s.log.WithError(err).WithField("member_id", id).Error("failed to remove member after failed registration")
	}
}
