package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jamolstroy/jamolstroy-service/internal/infra/postgres"
	"github.com/jamolstroy/jamolstroy-service/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("cart-service")

var ErrItemNotFound = errors.New("cart item not found")

// Item is one product line in a user's cart. UnitPrice and Name are joined in
// from the catalog at read time; LineTotal is computed, not stored.
type Item struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	ProductID   uuid.UUID `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	UnitPrice   int64     `json:"unit_price" db:"unit_price"`
	Quantity    int       `json:"quantity" db:"quantity"`
	LineTotal   int64     `json:"line_total"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Cart is the full cart view returned to the web client.
type Cart struct {
	Items []*Item `json:"items"`
	Total int64   `json:"total"`
}

type Service struct {
	db     postgres.DB
	logger *slog.Logger
}

func NewService(db postgres.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With("component", "cart-service"),
	}
}

func (s *Service) countOperation(ctx context.Context, op string) {
	if telemetry.CartOperationsTotal != nil {
		telemetry.CartOperationsTotal.Add(ctx, 1,
			api.WithAttributes(attribute.String("operation", op)))
	}
}

// AddItem upserts a product into the cart; adding an existing product
// increments its quantity.
func (s *Service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	ctx, span := tracer.Start(ctx, "cart.AddItem")
	defer span.End()

	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + $3, updated_at = NOW()
	`

	if _, err := s.db.Exec(ctx, query, userID, productID, quantity); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to add cart item: %w", err)
	}

	s.countOperation(ctx, "add")
	return nil
}

// SetQuantity replaces the quantity of a cart line; zero removes it.
func (s *Service) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	ctx, span := tracer.Start(ctx, "cart.SetQuantity")
	defer span.End()

	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative, got %d", quantity)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	query := `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE user_id = $1 AND product_id = $2
	`

	tag, err := s.db.Exec(ctx, query, userID, productID, quantity)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	s.countOperation(ctx, "update")
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "cart.RemoveItem")
	defer span.End()

	query := `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2
	`

	tag, err := s.db.Exec(ctx, query, userID, productID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	s.countOperation(ctx, "remove")
	return nil
}

func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "cart.Clear")
	defer span.End()

	query := `
		DELETE FROM cart_items
		WHERE user_id = $1
	`

	if _, err := s.db.Exec(ctx, query, userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	s.countOperation(ctx, "clear")
	return nil
}

// GetCart returns the user's cart lines with current catalog prices and the
// summed total.
func (s *Service) GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	ctx, span := tracer.Start(ctx, "cart.GetCart")
	defer span.End()

	query := `
		SELECT ci.id, ci.user_id, ci.product_id, p.name, p.price, ci.quantity, ci.created_at, ci.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	defer rows.Close()

	cart := &Cart{}
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.ProductID,
			&item.ProductName,
			&item.UnitPrice,
			&item.Quantity,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		item.LineTotal = item.UnitPrice * int64(item.Quantity)
		cart.Total += item.LineTotal
		cart.Items = append(cart.Items, &item)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return cart, nil
}
