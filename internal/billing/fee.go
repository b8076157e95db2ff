package billing

import "swimclub/internal/membership"

// Membership fees per year.
const (
	PassiveFee        = 500.0
	JuniorFee         = 1000.0
	SeniorFee         = 1600.0
	PensionerAge      = 60
	PensionerDiscount = 0.75
)

// FeeCalculator prices a membership.
type FeeCalculator interface {
	ComputeFee(m membership.Member) float64
}

// StandardFees applies the club's fee table.
type StandardFees struct{}

// ComputeFee implements FeeCalculator.
func (StandardFees) ComputeFee(m membership.Member) float64 { return ComputeFee(m) }

// ComputeFee returns the yearly fee for a member. Only the membership status
// and age are considered:
//
//	passive              500
//	active, under 18    1000
//	active, 18 to 59    1600
//	active, 60 and over 1200 (25% off the senior fee)
//
// Unknown statuses cost nothing.
func ComputeFee(m membership.Member) float64 {
	switch m.Status {
	case membership.StatusPassive:
		return PassiveFee
	case membership.StatusActive:
		switch {
		case m.Age < membership.JuniorAgeLimit:
			return JuniorFee
		case m.Age < PensionerAge:
			return SeniorFee
		default:
			return SeniorFee * PensionerDiscount
		}
	}
	return 0
}
