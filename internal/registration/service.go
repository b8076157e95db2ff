// internal/registration/service.go
package registration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"swimclub/internal/billing"
	"swimclub/internal/membership"
)

// ErrRateLimited is returned when registrations arrive faster than allowed.
var ErrRateLimited = errors.New("registration rate limit exceeded")

// EventMemberRegistered is journaled on the member's account stream.
const EventMemberRegistered = "MemberRegistered"

// Service registers new members and issues their first bill.
type Service interface {
	Register(ctx context.Context, in Input) (membership.Member, billing.Billing, error)
}

// Input carries the fields a new member supplies. Level is derived from age.
type Input struct {
	Name     string              `json:"name"`
	Email    string              `json:"email"`
	Phone    string              `json:"phone"`
	Age      int                 `json:"age"`
	Category membership.Category `json:"category"`
	Status   membership.Status   `json:"status"`
}

// BillIssuer is the part of the ledger registration needs.
type BillIssuer interface {
	CreateInitialBill(ctx context.Context, memberID uuid.UUID, amount float64, billingDate, dueDate time.Time) (billing.Billing, error)
}
