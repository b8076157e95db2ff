// internal/report/service.go
package report

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"swimclub/internal/billing"
	"swimclub/internal/membership"
)

// ErrUnknownFilter is returned for a dashboard filter other than complete or pending.
var ErrUnknownFilter = errors.New("unknown dashboard filter: use complete or pending")

// Dashboard filters.
const (
	FilterComplete = "complete"
	FilterPending  = "pending"
)

// Service answers the treasurer's questions over a set of members.
type Service interface {
	TotalExpected(members []membership.Member) float64
	MembersWithStatus(ctx context.Context, members []membership.Member, status billing.MemberPaymentStatus) []membership.Member
	MembersWithBillStatus(ctx context.Context, members []membership.Member, status billing.BillingStatus) []membership.Member
	Dashboard(ctx context.Context, members []membership.Member, filter string) ([]DashboardLine, error)
	FeeFor(ctx context.Context, memberID uuid.UUID) (float64, error)
	StatusOf(ctx context.Context, memberID uuid.UUID) (billing.MemberPaymentStatus, error)
}

// DashboardLine is one row of the treasurer dashboard.
type DashboardLine struct {
	MemberID uuid.UUID                   `json:"member_id"`
	Name     string                      `json:"name"`
	Phone    string                      `json:"phone"`
	Fee      float64                     `json:"fee"`
	Status   billing.MemberPaymentStatus `json:"status"`
}
