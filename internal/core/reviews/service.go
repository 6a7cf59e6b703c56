package reviews

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

var tracer = otel.Tracer("reviews-service")

var (
	ErrReviewNotFound = errors.New("review not found")
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
)

// Review is a user's rating of a product. One review per user per product;
// re-submitting replaces the earlier one.
type Review struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   *string   `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Summary aggregates a product's reviews for the catalog view.
type Summary struct {
	ProductID     uuid.UUID `json:"product_id"`
	AverageRating float64   `json:"average_rating"`
	ReviewCount   int       `json:"review_count"`
}

type Service struct {
	db postgres.DB
}

func NewService(db postgres.DB) *Service {
	return &Service{db: db}
}

const reviewColumns = `id, product_id, user_id, rating, comment, created_at, updated_at`

func scanReview(row pgx.Row) (*Review, error) {
	var r Review
	err := row.Scan(
		&r.ID,
		&r.ProductID,
		&r.UserID,
		&r.Rating,
		&r.Comment,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SubmitReview upserts the user's review for a product.
func (s *Service) SubmitReview(ctx context.Context, userID, productID uuid.UUID, rating int, comment *string) (*Review, error) {
	ctx, span := tracer.Start(ctx, "reviews.SubmitReview")
	defer span.End()

	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	query := `
		INSERT INTO reviews (product_id, user_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (product_id, user_id)
		DO UPDATE SET rating = $3, comment = $4, updated_at = NOW()
		RETURNING ` + reviewColumns

	review, err := scanReview(s.db.QueryRow(ctx, query, productID, userID, rating, comment))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to submit review: %w", err)
	}

	return review, nil
}

func (s *Service) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*Review, error) {
	ctx, span := tracer.Start(ctx, "reviews.ListByProduct")
	defer span.End()

	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, productID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

// Summarize returns the average rating and count for one product. A product
// with no reviews yields a zero-valued summary, not an error.
func (s *Service) Summarize(ctx context.Context, productID uuid.UUID) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "reviews.Summarize")
	defer span.End()

	query := `
		SELECT COALESCE(AVG(rating), 0), COUNT(*)
		FROM reviews
		WHERE product_id = $1
	`

	summary := &Summary{ProductID: productID}
	if err := s.db.QueryRow(ctx, query, productID).Scan(&summary.AverageRating, &summary.ReviewCount); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to summarize reviews: %w", err)
	}

	return summary, nil
}

// DeleteReview removes the user's own review.
func (s *Service) DeleteReview(ctx context.Context, userID, productID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "reviews.DeleteReview")
	defer span.End()

	tag, err := s.db.Exec(ctx,
		`DELETE FROM reviews WHERE product_id = $1 AND user_id = $2`,
		productID, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}

	return nil
}
