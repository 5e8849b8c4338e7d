package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriberStatus enumerates the states a subscriber can be in.
type SubscriberStatus string

const (
	// SubscriberPending is the state between form submission and the
	// confirmation link being followed.
	SubscriberPending SubscriberStatus = "pending_confirmation"
	// SubscriberConfirmed is set by the confirmation-link handler.
	SubscriberConfirmed SubscriberStatus = "confirmed"
)

// Subscriber is a person who submitted a subscription request,
// identified by their validated email address.
type Subscriber struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	Email        Email            `json:"email" db:"email"`
	Name         Name             `json:"name" db:"name"`
	Status       SubscriberStatus `json:"status" db:"status"`
	SubscribedAt time.Time        `json:"subscribed_at" db:"subscribed_at"`
}

// NewSubscriber builds a pending subscriber with a fresh id. The id is
// generated here, before any insert, so the same id can be referenced for
// token storage inside the enclosing transaction.
func NewSubscriber(email Email, name Name) *Subscriber {
	return &Subscriber{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Status:       SubscriberPending,
		SubscribedAt: time.Now().UTC(),
	}
}
