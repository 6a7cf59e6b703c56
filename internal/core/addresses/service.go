package addresses

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

var tracer = otel.Tracer("addresses-service")

var ErrAddressNotFound = errors.New("address not found")

// Address is a delivery destination. At most one address per user carries
// IsDefault; setting a new default clears the previous one.
type Address struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Label     string    `json:"label" db:"label"`
	Line      string    `json:"line" db:"line"`
	City      string    `json:"city" db:"city"`
	IsDefault bool      `json:"is_default" db:"is_default"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CreateAddressRequest struct {
	Label     string
	Line      string
	City      string
	IsDefault bool
}

type Service struct {
	db postgres.DB
}

func NewService(db postgres.DB) *Service {
	return &Service{db: db}
}

const addressColumns = `id, user_id, label, line, city, is_default, created_at, updated_at`

func scanAddress(row pgx.Row) (*Address, error) {
	var a Address
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Label,
		&a.Line,
		&a.City,
		&a.IsDefault,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAddress inserts an address; when it is marked default, the previous
// default is cleared in the same transaction.
func (s *Service) CreateAddress(ctx context.Context, userID uuid.UUID, req CreateAddressRequest) (*Address, error) {
	ctx, span := tracer.Start(ctx, "addresses.CreateAddress")
	defer span.End()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if req.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE addresses SET is_default = false, updated_at = NOW() WHERE user_id = $1 AND is_default = true`,
			userID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to clear default address: %w", err)
		}
	}

	query := `
		INSERT INTO addresses (user_id, label, line, city, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + addressColumns

	address, err := scanAddress(tx.QueryRow(ctx, query,
		userID, req.Label, req.Line, req.City, req.IsDefault))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create address: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit address: %w", err)
	}

	return address, nil
}

func (s *Service) ListAddresses(ctx context.Context, userID uuid.UUID) ([]*Address, error) {
	ctx, span := tracer.Start(ctx, "addresses.ListAddresses")
	defer span.End()

	query := `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*Address
	for rows.Next() {
		address, err := scanAddress(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, address)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}

	return addresses, nil
}

// SetDefault makes one of the user's addresses the default, clearing any other.
func (s *Service) SetDefault(ctx context.Context, userID, addressID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "addresses.SetDefault")
	defer span.End()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE addresses SET is_default = false, updated_at = NOW() WHERE user_id = $1 AND is_default = true`,
		userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear default address: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE addresses SET is_default = true, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		addressID, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set default address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit default address: %w", err)
	}

	return nil
}

func (s *Service) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "addresses.DeleteAddress")
	defer span.End()

	tag, err := s.db.Exec(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`,
		addressID, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}

	return nil
}
