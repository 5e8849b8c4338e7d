// Package subscription orchestrates the subscribe, confirm, and resend
// workflows: input validation, the transactional persistence step, and the
// confirmation email dispatch that follows a successful commit.
package subscription

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/email"
	"github.com/ignite/newsletter/internal/pkg/distlock"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/token"
)

// Store is the persistence surface the orchestrator needs. Satisfied by
// *postgres.SubscriptionStore.
type Store interface {
	Begin(ctx context.Context) (*sql.Tx, error)
	GetOrInsertSubscriber(ctx context.Context, tx *sql.Tx, sub *domain.Subscriber) (uuid.UUID, error)
	StoreToken(ctx context.Context, tx *sql.Tx, subscriberID uuid.UUID, token string) error
	GetSubscriberIDFromToken(ctx context.Context, token string) (uuid.UUID, bool, error)
	ConfirmSubscriber(ctx context.Context, subscriberID uuid.UUID) error
	GetSubscriberByEmail(ctx context.Context, email domain.Email) (*domain.Subscriber, bool, error)
}

// Sender dispatches one email. Satisfied by *email.Client.
type Sender interface {
	SendEmail(ctx context.Context, recipient domain.Email, subject, htmlBody, textBody string) error
}

// LockFactory builds a keyed lock for one subscribe request. A nil factory
// disables locking; the unique index on subscriptions(email) still prevents
// duplicate rows.
type LockFactory func(key string) distlock.DistLock

// Service runs the subscription workflows. Persistence and dispatch are
// deliberately sequential: the subscriber row and token commit first, the
// email goes out second, so a dispatch failure leaves a pending subscriber
// that the resend endpoint can recover.
type Service struct {
	store    Store
	sender   Sender
	renderer *email.Renderer
	baseURL  string
	newLock  LockFactory
}

// NewService wires the orchestrator. baseURL is the public address embedded
// in confirmation links. newLock may be nil.
func NewService(store Store, sender Sender, renderer *email.Renderer, baseURL string, newLock LockFactory) *Service {
	return &Service{
		store:    store,
		sender:   sender,
		renderer: renderer,
		baseURL:  baseURL,
		newLock:  newLock,
	}
}

// Subscribe registers a subscriber and dispatches a confirmation email.
//
// The persistence step is one transaction: get-or-insert the subscriber,
// store a fresh confirmation token, commit. Only after the commit does the
// email leave the building. If dispatch then fails, the committed state is
// kept and the error is reported as ErrKindDispatch; the subscriber retries
// through Resend.
func (s *Service) Subscribe(ctx context.Context, rawName, rawEmail string) error {
	addr, err := domain.ParseEmail(rawEmail)
	if err != nil {
		return validationErr(err)
	}
	name, err := domain.ParseName(rawName)
	if err != nil {
		return validationErr(err)
	}

	// Serialize concurrent subscribes for the same address. Losing the
	// lock means another request is mid-flight for this email; the caller
	// can simply retry. If the lock backend itself errors we proceed
	// anyway and let the unique index arbitrate.
	if s.newLock != nil {
		lock := s.newLock(distlock.SubscribeKey(addr.String()))
		acquired, lockErr := lock.Acquire(ctx)
		if lockErr != nil {
			logger.Warn("subscribe lock unavailable, relying on unique index",
				"email", addr.String(), "error", lockErr.Error())
		} else if !acquired {
			return persistenceErr(fmt.Errorf("concurrent subscribe in progress"))
		} else {
			defer func() {
				if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
					logger.Warn("subscribe lock release failed", "error", relErr.Error())
				}
			}()
		}
	}

	sub := domain.NewSubscriber(addr, name)
	confirmationToken := token.Generate()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return persistenceErr(err)
	}

	subscriberID, err := s.store.GetOrInsertSubscriber(ctx, tx, sub)
	if err != nil {
		tx.Rollback()
		return persistenceErr(err)
	}

	if err := s.store.StoreToken(ctx, tx, subscriberID, confirmationToken); err != nil {
		tx.Rollback()
		return persistenceErr(err)
	}

	if err := tx.Commit(); err != nil {
		return persistenceErr(fmt.Errorf("committing subscription: %w", err))
	}

	logger.Info("subscriber stored",
		"subscriber_id", subscriberID.String(), "email", addr.String())

	if err := s.dispatchConfirmation(ctx, addr, name, confirmationToken); err != nil {
		// Committed but unconfirmed and unnotified. Recoverable via the
		// resend endpoint.
		logger.Error("confirmation dispatch failed after commit",
			"subscriber_id", subscriberID.String(), "error", err.Error())
		return dispatchErr(err)
	}

	logger.Info("confirmation email sent", "subscriber_id", subscriberID.String())
	return nil
}

// Resend issues a fresh confirmation token for a pending subscriber and
// dispatches a new confirmation email. It is the recovery path for a
// subscribe whose dispatch failed after commit.
//
// Unknown and already-confirmed addresses are both reported as validation
// failures so the endpoint does not reveal who is subscribed.
func (s *Service) Resend(ctx context.Context, rawEmail string) error {
	addr, err := domain.ParseEmail(rawEmail)
	if err != nil {
		return validationErr(err)
	}

	sub, found, err := s.store.GetSubscriberByEmail(ctx, addr)
	if err != nil {
		return persistenceErr(err)
	}
	if !found {
		return validationErr(fmt.Errorf("no pending subscription for this address"))
	}
	if sub.Status == domain.SubscriberConfirmed {
		return validationErr(fmt.Errorf("subscription already confirmed"))
	}

	confirmationToken := token.Generate()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return persistenceErr(err)
	}
	if err := s.store.StoreToken(ctx, tx, sub.ID, confirmationToken); err != nil {
		tx.Rollback()
		return persistenceErr(err)
	}
	if err := tx.Commit(); err != nil {
		return persistenceErr(fmt.Errorf("committing resend token: %w", err))
	}

	if err := s.dispatchConfirmation(ctx, addr, sub.Name, confirmationToken); err != nil {
		logger.Error("resend dispatch failed",
			"subscriber_id", sub.ID.String(), "error", err.Error())
		return dispatchErr(err)
	}

	logger.Info("confirmation email resent", "subscriber_id", sub.ID.String())
	return nil
}

// Confirm transitions the subscriber owning the given token to confirmed.
// Confirming twice is a no-op success. Tokens are not consumed: every link
// ever issued for a subscriber keeps working.
func (s *Service) Confirm(ctx context.Context, rawToken string) error {
	if !token.Valid(rawToken) {
		return validationErr(fmt.Errorf("malformed subscription token"))
	}

	subscriberID, found, err := s.store.GetSubscriberIDFromToken(ctx, rawToken)
	if err != nil {
		return persistenceErr(err)
	}
	if !found {
		return notFoundErr(fmt.Errorf("unknown subscription token"))
	}

	if err := s.store.ConfirmSubscriber(ctx, subscriberID); err != nil {
		return persistenceErr(err)
	}

	logger.Info("subscriber confirmed", "subscriber_id", subscriberID.String())
	return nil
}

func (s *Service) dispatchConfirmation(ctx context.Context, addr domain.Email, name domain.Name, confirmationToken string) error {
	link := email.ConfirmationLink(s.baseURL, confirmationToken)
	subject, htmlBody, textBody, err := s.renderer.ConfirmationEmail(name, link)
	if err != nil {
		return fmt.Errorf("rendering confirmation email: %w", err)
	}
	return s.sender.SendEmail(ctx, addr, subject, htmlBody, textBody)
}
