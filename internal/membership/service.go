// internal/membership/service.go
package membership

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrMemberNotFound is returned when no member has the requested id.
	ErrMemberNotFound = errors.New("member not found")
	// ErrDuplicateEmail is returned when another member already uses the email.
	ErrDuplicateEmail = errors.New("member email already registered")
)

// Finder is the read side of the member directory.
type Finder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Member, error)
	FindAll(ctx context.Context) ([]Member, error)
}

// Store defines the member directory the billing core consumes.
type Store interface {
	Finder
	Save(ctx context.Context, m Member) error
	Delete(ctx context.Context, id uuid.UUID) error
}
