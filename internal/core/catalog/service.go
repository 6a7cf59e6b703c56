package catalog

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
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("catalog-service")

var ErrProductNotFound = errors.New("product not found")

// Product is a construction material offered in the storefront. Price is in
// minor currency units.
type Product struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description" db:"description"`
	CategoryID  *uuid.UUID `json:"category_id" db:"category_id"`
	Price       int64      `json:"price" db:"price"`
	Unit        string     `json:"unit" db:"unit"`
	ImageURL    *string    `json:"image_url" db:"image_url"`
	InStock     bool       `json:"in_stock" db:"in_stock"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type Category struct {
	ID       uuid.UUID  `json:"id" db:"id"`
	Name     string     `json:"name" db:"name"`
	ParentID *uuid.UUID `json:"parent_id" db:"parent_id"`
}

type CreateProductRequest struct {
	Name        string
	Description *string
	CategoryID  *uuid.UUID
	Price       int64
	Unit        string
	ImageURL    *string
}

type Service struct {
	db     postgres.DB
	cache  *Cache
	logger *slog.Logger
}

func NewService(db postgres.DB, cache *Cache, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  cache,
		logger: logger.With("component", "catalog-service"),
	}
}

const productColumns = `id, name, description, category_id, price, unit, image_url, in_stock, created_at, updated_at`

func prefixedProductColumns(alias string) string {
	return fmt.Sprintf("%[1]s.id, %[1]s.name, %[1]s.description, %[1]s.category_id, %[1]s.price, %[1]s.unit, %[1]s.image_url, %[1]s.in_stock, %[1]s.created_at, %[1]s.updated_at", alias)
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.CategoryID,
		&p.Price,
		&p.Unit,
		&p.ImageURL,
		&p.InStock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) collectProducts(rows pgx.Rows) ([]*Product, error) {
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// ListProducts returns catalog products, optionally filtered by category,
// serving repeated reads from the cache.
func (s *Service) ListProducts(ctx context.Context, categoryID *uuid.UUID) ([]*Product, error) {
	ctx, span := tracer.Start(ctx, "catalog.ListProducts")
	defer span.End()

	if telemetry.CatalogQueriesTotal != nil {
		telemetry.CatalogQueriesTotal.Add(ctx, 1,
			api.WithAttributes(attribute.String("query", "list")))
	}

	if cached, ok := s.cache.GetProductList(ctx, categoryID); ok {
		return cached, nil
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE in_stock = true AND ($1::uuid IS NULL OR category_id = $1)
		ORDER BY name
	`

	rows, err := s.db.Query(ctx, query, categoryID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	products, err := s.collectProducts(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.cache.SetProductList(ctx, categoryID, products)

	return products, nil
}

// SearchProducts searches by name substring. Ranking is left to the caller's
// presentation layer; only a starts-with preference is applied.
func (s *Service) SearchProducts(ctx context.Context, term string) ([]*Product, error) {
	ctx, span := tracer.Start(ctx, "catalog.SearchProducts")
	defer span.End()

	if telemetry.CatalogQueriesTotal != nil {
		telemetry.CatalogQueriesTotal.Add(ctx, 1,
			api.WithAttributes(attribute.String("query", "search")))
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE in_stock = true AND name ILIKE $1
		ORDER BY
			CASE WHEN name ILIKE $2 THEN 1 ELSE 2 END,
			name
	`

	rows, err := s.db.Query(ctx, query, "%"+term+"%", term+"%")
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	products, err := s.collectProducts(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return products, nil
}

// ListPopularProducts ranks in-stock products by how often they were ordered
// in the last 30 days.
func (s *Service) ListPopularProducts(ctx context.Context, limit int) ([]*Product, error) {
	ctx, span := tracer.Start(ctx, "catalog.ListPopularProducts")
	defer span.End()

	if limit <= 0 || limit > 50 {
		limit = 10
	}

	if telemetry.CatalogQueriesTotal != nil {
		telemetry.CatalogQueriesTotal.Add(ctx, 1,
			api.WithAttributes(attribute.String("query", "popular")))
	}

	query := `
		SELECT ` + prefixedProductColumns("p") + `
		FROM products p
		LEFT JOIN order_lines ol ON ol.product_id = p.id
		LEFT JOIN orders o ON o.id = ol.order_id AND o.created_at > now() - interval '30 days'
		WHERE p.in_stock = true
		GROUP BY p.id
		ORDER BY COUNT(o.id) DESC, p.name
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list popular products: %w", err)
	}

	products, err := s.collectProducts(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return products, nil
}

func (s *Service) GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	ctx, span := tracer.Start(ctx, "catalog.GetProductByID")
	defer span.End()

	if cached, ok := s.cache.GetProduct(ctx, id); ok {
		return cached, nil
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
	`

	product, err := scanProduct(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get product %s: %w", id.String(), err)
	}

	s.cache.SetProduct(ctx, product)

	return product, nil
}

// CreateProduct adds a product to the catalog and invalidates list caches.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	ctx, span := tracer.Start(ctx, "catalog.CreateProduct")
	defer span.End()

	query := `
		INSERT INTO products (name, description, category_id, price, unit, image_url, in_stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, NOW(), NOW())
		RETURNING ` + productColumns

	product, err := scanProduct(s.db.QueryRow(ctx, query,
		req.Name,
		req.Description,
		req.CategoryID,
		req.Price,
		req.Unit,
		req.ImageURL,
	))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.cache.InvalidateProductLists(ctx)

	return product, nil
}

// SetProductStock flips availability and drops the product from the cache.
func (s *Service) SetProductStock(ctx context.Context, id uuid.UUID, inStock bool) error {
	ctx, span := tracer.Start(ctx, "catalog.SetProductStock")
	defer span.End()

	query := `
		UPDATE products
		SET in_stock = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, id, inStock)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	s.cache.InvalidateProduct(ctx, id)
	s.cache.InvalidateProductLists(ctx)

	return nil
}

// SetProductImage records the stored image URL on the product row.
func (s *Service) SetProductImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	ctx, span := tracer.Start(ctx, "catalog.SetProductImage")
	defer span.End()

	query := `
		UPDATE products
		SET image_url = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, id, imageURL)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update product image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	s.cache.InvalidateProduct(ctx, id)
	s.cache.InvalidateProductLists(ctx)

	return nil
}

func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	ctx, span := tracer.Start(ctx, "catalog.ListCategories")
	defer span.End()

	query := `
		SELECT id, name, parent_id
		FROM categories
		ORDER BY name
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}
