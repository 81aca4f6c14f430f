package enums

import "fmt"

// PaymentStatus tracks the lifecycle of a payment intent.
type PaymentStatus string

const (
	PaymentStatusCreated             PaymentStatus = "created"
	PaymentStatusPendingVerification PaymentStatus = "pending_verification"
	PaymentStatusVerified            PaymentStatus = "verified"
	PaymentStatusRejected            PaymentStatus = "rejected"
	PaymentStatusRefunded            PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusCreated,
	PaymentStatusPendingVerification,
	PaymentStatusVerified,
	PaymentStatusRejected,
	PaymentStatusRefunded,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from p.
// Verified intents may still be refunded; rejected and refunded are final.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentStatusRejected || p == PaymentStatusRefunded
}

// CanTransitionTo reports whether moving from p to next is a legal lifecycle
// step.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch p {
	case PaymentStatusCreated:
		return next == PaymentStatusPendingVerification || next == PaymentStatusRejected
	case PaymentStatusPendingVerification:
		return next == PaymentStatusVerified || next == PaymentStatusRejected
	case PaymentStatusVerified:
		return next == PaymentStatusRefunded
	default:
		return false
	}
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
