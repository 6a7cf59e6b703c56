package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jamolstroy/jamolstroy-service/internal/infra/postgres"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("auth-service")

// Store persists login sessions. The postgres implementation is used in
// production; tests use an in-memory fake.
type Store interface {
	// Insert persists a freshly created pending session.
	Insert(ctx context.Context, session *LoginSession) error

	// GetByToken returns the session for token, or nil when absent.
	GetByToken(ctx context.Context, token string) (*LoginSession, error)

	// MarkTerminal performs the one permitted terminal transition as an
	// atomic conditional update. It returns false when no row matched, i.e.
	// the session is absent, bound to a different client, already terminal,
	// or past its expiry at the write timestamp. The second writer of a
	// callback race loses here rather than overwriting.
	MarkTerminal(ctx context.Context, token, clientID string, status Status, userID *uuid.UUID, at time.Time) (bool, error)

	// DeleteTerminalBefore removes terminal and expired sessions created
	// before the cutoff, returning the number of rows removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresStore keeps login sessions in the login_sessions table.
type PostgresStore struct {
	db postgres.DB
}

func NewPostgresStore(db postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, session *LoginSession) error {
	ctx, span := tracer.Start(ctx, "auth.store.Insert")
	defer span.End()

	query := `
		INSERT INTO login_sessions (token, client_id, status, user_id, created_at, expires_at, approved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		session.Token,
		session.ClientID,
		session.Status,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
		session.ApprovedAt,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert login session: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetByToken(ctx context.Context, token string) (*LoginSession, error) {
	ctx, span := tracer.Start(ctx, "auth.store.GetByToken")
	defer span.End()

	query := `
		SELECT token, client_id, status, user_id, created_at, expires_at, approved_at
		FROM login_sessions
		WHERE token = $1
	`

	var session LoginSession
	err := s.db.QueryRow(ctx, query, token).Scan(
		&session.Token,
		&session.ClientID,
		&session.Status,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.ApprovedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get login session: %w", err)
	}

	return &session, nil
}

func (s *PostgresStore) MarkTerminal(ctx context.Context, token, clientID string, status Status, userID *uuid.UUID, at time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "auth.store.MarkTerminal")
	defer span.End()

	query := `
		UPDATE login_sessions
		SET status = $3, user_id = $4, approved_at = $5
		WHERE token = $1 AND client_id = $2 AND status = $6 AND expires_at > $5
	`

	tag, err := s.db.Exec(ctx, query, token, clientID, status, userID, at, StatusPending)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to resolve login session: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "auth.store.DeleteTerminalBefore")
	defer span.End()

	query := `
		DELETE FROM login_sessions
		WHERE created_at < $1 AND (status <> $2 OR expires_at <= NOW())
	`

	tag, err := s.db.Exec(ctx, query, cutoff, StatusPending)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to prune login sessions: %w", err)
	}

	return tag.RowsAffected(), nil
}
