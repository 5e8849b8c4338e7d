// Package postgres implements persistence for subscribers and their
// confirmation tokens.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/newsletter/internal/domain"
)

// SubscriptionStore provides database operations for subscribers and
// subscription tokens. The write operations take an explicit *sql.Tx: the
// subscriber row and its token row must commit together or not at all, and
// the transaction boundary is owned by the caller.
type SubscriptionStore struct {
	db *sql.DB
}

// NewSubscriptionStore creates a new subscription store.
func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Begin opens the transaction that scopes one subscribe request.
func (s *SubscriptionStore) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return tx, nil
}

// FindSubscriberIDByEmail looks up a subscriber id by its email.
// Returns found=false (not an error) when no row exists.
func (s *SubscriptionStore) FindSubscriberIDByEmail(ctx context.Context, tx *sql.Tx, email domain.Email) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM subscriptions WHERE email = $1`, email.String(),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("looking up subscriber by email: %w", err)
	}
	return id, true, nil
}

// InsertSubscriber inserts a new pending subscriber. The id is generated by
// the caller before the call so the same id can be referenced for token
// storage within the transaction. A duplicate email is not an error: the
// insert yields to the existing row (ON CONFLICT DO NOTHING, which keeps
// the enclosing transaction usable) and inserted reports false.
func (s *SubscriptionStore) InsertSubscriber(ctx context.Context, tx *sql.Tx, sub *domain.Subscriber) (inserted bool, err error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO subscriptions (id, email, name, status, subscribed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO NOTHING`,
		sub.ID, sub.Email.String(), sub.Name.String(), string(sub.Status), sub.SubscribedAt)
	if err != nil {
		return false, fmt.Errorf("inserting subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting subscriber: %w", err)
	}
	return n == 1, nil
}

// GetOrInsertSubscriber is the idempotency boundary: repeated subscribe
// calls for the same email converge on one subscriber id. A concurrent
// first-time subscription can still slip between the lookup and the insert;
// the unique index on subscriptions(email) then makes the insert a no-op,
// and the winning row is adopted by re-reading it.
func (s *SubscriptionStore) GetOrInsertSubscriber(ctx context.Context, tx *sql.Tx, sub *domain.Subscriber) (uuid.UUID, error) {
	id, found, err := s.FindSubscriberIDByEmail(ctx, tx, sub.Email)
	if err != nil {
		return uuid.Nil, err
	}
	if found {
		return id, nil
	}

	inserted, err := s.InsertSubscriber(ctx, tx, sub)
	if err != nil {
		return uuid.Nil, err
	}
	if !inserted {
		id, found, err := s.FindSubscriberIDByEmail(ctx, tx, sub.Email)
		if err != nil {
			return uuid.Nil, err
		}
		if !found {
			return uuid.Nil, fmt.Errorf("subscriber row missing after conflicting insert")
		}
		return id, nil
	}

	return sub.ID, nil
}

// StoreToken inserts a confirmation token for the subscriber. Tokens are
// append-only from this store's perspective; repeated subscribe calls leave
// older tokens in place.
func (s *SubscriptionStore) StoreToken(ctx context.Context, tx *sql.Tx, subscriberID uuid.UUID, token string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO subscription_tokens (subscription_token, subscriber_id)
		 VALUES ($1, $2)`,
		token, subscriberID)
	if err != nil {
		return fmt.Errorf("storing subscription token: %w", err)
	}
	return nil
}

// GetSubscriberIDFromToken resolves a confirmation token to its subscriber.
// Returns found=false for an unknown token.
func (s *SubscriptionStore) GetSubscriberIDFromToken(ctx context.Context, token string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT subscriber_id FROM subscription_tokens WHERE subscription_token = $1`, token,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("looking up token: %w", err)
	}
	return id, true, nil
}

// ConfirmSubscriber transitions the subscriber to confirmed. Confirming an
// already-confirmed subscriber is a no-op.
func (s *SubscriptionStore) ConfirmSubscriber(ctx context.Context, subscriberID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = $1 WHERE id = $2`,
		string(domain.SubscriberConfirmed), subscriberID)
	if err != nil {
		return fmt.Errorf("confirming subscriber: %w", err)
	}
	return nil
}

// GetSubscriberByEmail fetches the full subscriber row for the resend path.
// Returns found=false when no row exists.
func (s *SubscriptionStore) GetSubscriberByEmail(ctx context.Context, email domain.Email) (*domain.Subscriber, bool, error) {
	sub := &domain.Subscriber{}
	var emailStr, nameStr, statusStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, status, subscribed_at FROM subscriptions WHERE email = $1`,
		email.String(),
	).Scan(&sub.ID, &emailStr, &nameStr, &statusStr, &sub.SubscribedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetching subscriber by email: %w", err)
	}
	sub.Email = domain.Email(emailStr)
	sub.Name = domain.Name(nameStr)
	sub.Status = domain.SubscriberStatus(statusStr)
	return sub, true, nil
}
