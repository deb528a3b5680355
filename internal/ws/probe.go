package ws

import (
	"context"
	"log"

	"relay-service/internal/repositories"
)

// AvailabilityProbe answers onboarding uniqueness checks. It has no state
// and no delivery semantics; it shares the websocket only because onboarding
// clients are already connected anonymously.
type AvailabilityProbe struct {
	users repositories.UserRepository
}

// NewAvailabilityProbe constructs an AvailabilityProbe.
func NewAvailabilityProbe(users repositories.UserRepository) *AvailabilityProbe {
	return &AvailabilityProbe{users: users}
}

// CheckEmail reports whether the email is free to register.
func (p *AvailabilityProbe) CheckEmail(ctx context.Context, email string) AvailabilityEvent {
	taken, err := p.users.EmailTaken(ctx, email)
	if err != nil {
		log.Printf("email check failed: %v", err)
		return NewAvailabilityEvent("email", false, "Error checking email")
	}
	if taken {
		return NewAvailabilityEvent("email", false, "Email is taken")
	}
	return NewAvailabilityEvent("email", true, "Email is available")
}

// CheckPhone reports whether the phone number is free to register.
func (p *AvailabilityProbe) CheckPhone(ctx context.Context, phone string) AvailabilityEvent {
	taken, err := p.users.PhoneTaken(ctx, phone)
	if err != nil {
		log.Printf("phone check failed: %v", err)
		return NewAvailabilityEvent("phone", false, "Error checking phone number")
	}
	if taken {
		return NewAvailabilityEvent("phone", false, "Phone number is taken")
	}
	return NewAvailabilityEvent("phone", true, "Phone number is available")
}
