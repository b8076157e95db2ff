// internal/membership/domain.go
package membership

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Category is the kind of swimming a member signed up for.
type Category string

const (
	CategoryCompetitive Category = "competitive"
	CategoryExercise    Category = "exercise"
)

// Level separates junior and senior swimmers.
type Level string

const (
	LevelJunior Level = "junior"
	LevelSenior Level = "senior"
)

// Status is the membership status used by the fee rules.
type Status string

const (
	StatusActive  Status = "active"
	StatusPassive Status = "passive"
)

// JuniorAgeLimit is the first age at which a swimmer counts as senior.
const JuniorAgeLimit = 18

// MaxAge is the highest accepted age, matching the lte rule on Member.Age.
const MaxAge = 120

// ErrInvalidMember is returned when member data fails validation.
var ErrInvalidMember = errors.New("invalid member")

var validate = validator.New()

// Member represents a swim-club member.
type Member struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name" validate:"required,max=200"`
	Email     string    `json:"email" validate:"required,email"`
	Phone     string    `json:"phone,omitempty" validate:"omitempty,max=20"`
	Age       int       `json:"age" validate:"gte=0,lte=120"`
	Category  Category  `json:"category" validate:"oneof=competitive exercise"`
	Level     Level     `json:"level" validate:"oneof=junior senior"`
	Status    Status    `json:"status" validate:"oneof=active passive"`
	CreatedAt time.Time `json:"created_at"`
}

// LevelForAge returns the level a member of the given age belongs to.
func LevelForAge(age int) Level {
	if age < JuniorAgeLimit {
		return LevelJunior
	}
	return LevelSenior
}

// Validate checks the fields a member must carry before it is stored.
func Validate(m Member) error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMember, err)
	}
	return nil
}

// Describe renders the membership type, e.g. "Junior Member: Junior Competitive Swimmer".
func Describe(m Member) string {
	level := titleCase(string(m.Level))
	return level + " Member: " + level + " " + titleCase(string(m.Category)) + " Swimmer"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// MemberRegisteredEvent is published when a new member registers.
type MemberRegisteredEvent struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Category Category  `json:"category"`
	Level    Level     `json:"level"`
	Status   Status    `json:"status"`
}
