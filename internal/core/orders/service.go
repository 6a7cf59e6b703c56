package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jamolstroy/jamolstroy-service/internal/infra/postgres"
	"github.com/jamolstroy/jamolstroy-service/pkg/telemetry"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("orders-service")

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Status is the order lifecycle state.
type Status string

const (
	StatusNew        Status = "new"
	StatusConfirmed  Status = "confirmed"
	StatusDelivering Status = "delivering"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// next maps each status to the one it advances to. Terminal states map to
// nothing.
var next = map[Status]Status{
	StatusNew:        StatusConfirmed,
	StatusConfirmed:  StatusDelivering,
	StatusDelivering: StatusCompleted,
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Line is one product in an order, with the name and unit price snapshotted at
// placement time so later catalog edits do not rewrite history.
type Line struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OrderID     uuid.UUID `json:"order_id" db:"order_id"`
	ProductID   uuid.UUID `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	UnitPrice   int64     `json:"unit_price" db:"unit_price"`
	Quantity    int       `json:"quantity" db:"quantity"`
}

type Order struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Status    Status     `json:"status" db:"status"`
	Total     int64      `json:"total" db:"total"`
	AddressID *uuid.UUID `json:"address_id" db:"address_id"`
	Comment   *string    `json:"comment" db:"comment"`
	Lines     []*Line    `json:"lines,omitempty"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type PlaceOrderRequest struct {
	UserID    uuid.UUID
	AddressID *uuid.UUID
	Comment   *string
}

// Notifier delivers order events out of band. The Telegram bot implements it;
// delivery is best effort and never fails the order.
type Notifier interface {
	NotifyOrderPlaced(ctx context.Context, order *Order)
	NotifyOrderStatus(ctx context.Context, order *Order)
}

type Service struct {
	db       postgres.DB
	notifier Notifier
	logger   *slog.Logger
}

func NewService(db postgres.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With("component", "orders-service"),
	}
}

// SetNotifier wires the bot in after construction; the bot itself depends on
// this service for /orders.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

const orderColumns = `id, user_id, status, total, address_id, comment, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.Total,
		&o.AddressID,
		&o.Comment,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// PlaceOrder turns the user's cart into an order inside one transaction:
// the order row, its lines with snapshotted prices, and the cart clear all
// commit together or not at all.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.PlaceOrder")
	defer span.End()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cartQuery := `
		SELECT ci.product_id, p.name, p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1 AND p.in_stock = true
		ORDER BY ci.created_at
	`

	rows, err := tx.Query(ctx, cartQuery, req.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	var lines []*Line
	var total int64
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.UnitPrice, &line.Quantity); err != nil {
			rows.Close()
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		total += line.UnitPrice * int64(line.Quantity)
		lines = append(lines, &line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	orderQuery := `
		INSERT INTO orders (user_id, status, total, address_id, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + orderColumns

	order, err := scanOrder(tx.QueryRow(ctx, orderQuery,
		req.UserID,
		StatusNew,
		total,
		req.AddressID,
		req.Comment,
	))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	lineQuery := `
		INSERT INTO order_lines (order_id, product_id, product_name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	for _, line := range lines {
		line.OrderID = order.ID
		if err := tx.QueryRow(ctx, lineQuery,
			order.ID,
			line.ProductID,
			line.ProductName,
			line.UnitPrice,
			line.Quantity,
		).Scan(&line.ID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to insert order line: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, req.UserID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	order.Lines = lines

	if telemetry.OrdersPlacedTotal != nil {
		telemetry.OrdersPlacedTotal.Add(ctx, 1)
	}
	if telemetry.OrdersActive != nil {
		telemetry.OrdersActive.Add(ctx, 1)
	}

	s.logger.Info("Order placed",
		"order_id", order.ID.String(),
		"user_id", req.UserID.String(),
		"lines", len(lines),
		"total", total)

	if s.notifier != nil {
		s.notifier.NotifyOrderPlaced(ctx, order)
	}

	return order, nil
}

// GetOrder returns one order with its lines, scoped to the owning user.
func (s *Service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.GetOrder")
	defer span.End()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1 AND user_id = $2
	`

	order, err := scanOrder(s.db.QueryRow(ctx, query, orderID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get order %s: %w", orderID.String(), err)
	}

	if order.Lines, err = s.loadLines(ctx, order.ID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return order, nil
}

func (s *Service) loadLines(ctx context.Context, orderID uuid.UUID) ([]*Line, error) {
	query := `
		SELECT id, order_id, product_id, product_name, unit_price, quantity
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := s.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []*Line
	for rows.Next() {
		var line Line
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.ProductName,
			&line.UnitPrice,
			&line.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, &line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order lines: %w", err)
	}

	return lines, nil
}

// ListOrders returns the user's orders newest first, without lines.
func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID) ([]*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.ListOrders")
	defer span.End()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// CancelOrder cancels the user's own order while it is still new or confirmed.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.CancelOrder")
	defer span.End()

	query := `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status IN ($4, $5)
		RETURNING ` + orderColumns

	order, err := scanOrder(s.db.QueryRow(ctx, query,
		orderID, userID, StatusCancelled, StatusNew, StatusConfirmed))
	if errors.Is(err, pgx.ErrNoRows) {
		// The row either does not exist for this user or is past the point
		// of cancellation; tell them apart for the caller.
		if _, getErr := s.GetOrder(ctx, userID, orderID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidTransition
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to cancel order %s: %w", orderID.String(), err)
	}

	if telemetry.OrdersActive != nil {
		telemetry.OrdersActive.Add(ctx, -1)
	}

	s.logger.Info("Order cancelled",
		"order_id", orderID.String(),
		"user_id", userID.String())

	if s.notifier != nil {
		s.notifier.NotifyOrderStatus(ctx, order)
	}

	return order, nil
}

// AdvanceStatus moves an order one step along its lifecycle. Admin only; the
// handler enforces that.
func (s *Service) AdvanceStatus(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.AdvanceStatus")
	defer span.End()

	current, err := s.getAny(ctx, orderID)
	if err != nil {
		return nil, err
	}

	to, ok := next[current.Status]
	if !ok {
		return nil, ErrInvalidTransition
	}

	query := `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING ` + orderColumns

	order, err := scanOrder(s.db.QueryRow(ctx, query, orderID, to, current.Status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to advance order %s: %w", orderID.String(), err)
	}

	if to == StatusCompleted && telemetry.OrdersActive != nil {
		telemetry.OrdersActive.Add(ctx, -1)
	}

	s.logger.Info("Order status advanced",
		"order_id", orderID.String(),
		"from", current.Status,
		"to", to)

	if s.notifier != nil {
		s.notifier.NotifyOrderStatus(ctx, order)
	}

	return order, nil
}

func (s *Service) getAny(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1
	`

	order, err := scanOrder(s.db.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID.String(), err)
	}
	return order, nil
}

// ListAllOrders returns every non-terminal order for admin review.
func (s *Service) ListAllOrders(ctx context.Context) ([]*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.ListAllOrders")
	defer span.End()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status NOT IN ($1, $2)
		ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, StatusCompleted, StatusCancelled)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query open orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
