package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jamolstroy/jamolstroy-service/internal/core/users"
	"github.com/jamolstroy/jamolstroy-service/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

// IdentityResolver maps Telegram identities to application accounts. The
// users service implements it; approval binds user_id through it, and polls
// load the bound account back through it.
type IdentityResolver interface {
	AccountIDByTelegramID(ctx context.Context, telegramID int64) (uuid.UUID, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*users.User, error)
}

// CreateResult is returned to the web client that initiated a login.
type CreateResult struct {
	Token     string    `json:"token"`
	DeepLink  string    `json:"telegram_deep_link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PollResult is the answer to a login status poll. UserID and Account are set
// only when the session is approved; the account record is what the web
// client signs the user in with.
type PollResult struct {
	Status    Status      `json:"status"`
	UserID    *uuid.UUID  `json:"user_id,omitempty"`
	Account   *users.User `json:"account,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// ResolveResult describes the terminal transition a callback produced.
type ResolveResult struct {
	Status Status
	UserID *uuid.UUID
}

// Service owns the pending-to-terminal transition for each login token and
// brokers correlation between the polling web client and the bot approval.
type Service struct {
	store       Store
	identities  IdentityResolver
	botUsername string
	logger      *slog.Logger
}

func NewService(store Store, identities IdentityResolver, botUsername string, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		identities:  identities,
		botUsername: botUsername,
		logger:      logger.With("component", "auth-service"),
	}
}

// Create generates a fresh login session for clientID and returns the token,
// the bot deep link and the expiry. A persistence failure leaves no partial
// state behind; the caller retries or aborts.
func (s *Service) Create(ctx context.Context, clientID string) (*CreateResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Create")
	defer span.End()

	if !validClientID(clientID) {
		return nil, ErrInvalidClientID
	}

	token, err := newLoginToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &LoginSession{
		Token:     token,
		ClientID:  clientID,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}

	if err := s.store.Insert(ctx, session); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if telemetry.LoginSessionsCreated != nil {
		telemetry.LoginSessionsCreated.Add(ctx, 1,
			api.WithAttributes(attribute.String("client_id", clientID)))
	}

	s.logger.Info("Created login session",
		"client_id", clientID,
		"expires_at", session.ExpiresAt)

	return &CreateResult{
		Token:     token,
		DeepLink:  BuildDeepLink(s.botUsername, token, clientID, now),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Resolve applies an approval decision delivered by a bot callback. Both the
// token and the client id must match the stored session; a mismatch reads as
// not found so a stolen token cannot be bound to a different client. The
// terminal write is conditional on the session still being pending, so a
// duplicate or racing callback is answered as already resolved rather than
// overwriting the first outcome.
func (s *Service) Resolve(ctx context.Context, action Action, token, clientID string, telegramID int64) (*ResolveResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Resolve")
	defer span.End()

	session, err := s.store.GetByToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if session == nil || session.ClientID != clientID {
		return nil, ErrSessionNotFound
	}

	now := time.Now().UTC()
	if session.Status.Terminal() {
		return nil, ErrAlreadyResolved
	}
	if session.ExpiredAt(now) {
		if telemetry.LoginSessionsExpired != nil {
			telemetry.LoginSessionsExpired.Add(ctx, 1)
		}
		return nil, ErrSessionExpired
	}

	status := StatusRejected
	var userID *uuid.UUID
	if action == ActionApprove {
		accountID, err := s.identities.AccountIDByTelegramID(ctx, telegramID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%w: %v", ErrAccountNotLinked, err)
		}
		status = StatusApproved
		userID = &accountID
	}

	ok, err := s.store.MarkTerminal(ctx, token, clientID, status, userID, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !ok {
		// Lost the write: re-read to tell a racing terminal transition
		// apart from an expiry that landed between the read and the write.
		session, err = s.store.GetByToken(ctx, token)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if session == nil || session.ClientID != clientID {
			return nil, ErrSessionNotFound
		}
		if session.Status.Terminal() {
			return nil, ErrAlreadyResolved
		}
		return nil, ErrSessionExpired
	}

	if telemetry.LoginSessionsResolved != nil {
		telemetry.LoginSessionsResolved.Add(ctx, 1,
			api.WithAttributes(attribute.String("outcome", string(status))))
	}

	s.logger.Info("Resolved login session",
		"client_id", clientID,
		"outcome", status,
		"telegram_id", telegramID)

	return &ResolveResult{Status: status, UserID: userID}, nil
}

// Poll answers a login status query from the web client. Expiry is computed
// lazily from expires_at; the stored row is never mutated by a read, and an
// unknown token is an error distinct from an expired session.
func (s *Service) Poll(ctx context.Context, token string) (*PollResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Poll")
	defer span.End()

	session, err := s.store.GetByToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	status := session.EffectiveStatus(time.Now().UTC())
	if telemetry.LoginPollsTotal != nil {
		telemetry.LoginPollsTotal.Add(ctx, 1,
			api.WithAttributes(attribute.String("status", string(status))))
	}

	result := &PollResult{
		Status:    status,
		ExpiresAt: session.ExpiresAt,
	}
	if status == StatusApproved {
		result.UserID = session.UserID
		if session.UserID != nil {
			account, err := s.identities.GetUserByID(ctx, *session.UserID)
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
			result.Account = account
		}
	}

	return result, nil
}

// PruneTerminal deletes resolved and expired sessions older than retention.
// Lazy expiry never depends on this; it only bounds table growth.
func (s *Service) PruneTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	ctx, span := tracer.Start(ctx, "auth.PruneTerminal")
	defer span.End()

	removed, err := s.store.DeleteTerminalBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	if removed > 0 {
		s.logger.Info("Pruned login sessions", "removed", removed)
	}

	return removed, nil
}
