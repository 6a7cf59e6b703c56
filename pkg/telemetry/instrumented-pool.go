package telemetry

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InstrumentedPool wraps the pgx pool so every statement records its duration
// by operation kind and failed statements feed the database error counter.
// Begin and Close pass through the embedded pool untouched.
type InstrumentedPool struct {
	*pgxpool.Pool
	queryDuration api.Float64Histogram
}

func NewInstrumentedPool(provider *metric.MeterProvider, pool *pgxpool.Pool) (*InstrumentedPool, error) {
	meter := provider.Meter("db_queries")

	queryDuration, err := meter.Float64Histogram(
		"db.query_duration",
		api.WithDescription("Duration of database statements by operation"),
		api.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedPool{
		Pool:          pool,
		queryDuration: queryDuration,
	}, nil
}

func (ip *InstrumentedPool) observe(ctx context.Context, operation string, start time.Time, err error) {
	attrs := api.WithAttributes(attribute.String("operation", operation))

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	ip.queryDuration.Record(ctx, elapsed, attrs)

	if err != nil && DatabaseErrorsTotal != nil {
		DatabaseErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (ip *InstrumentedPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := ip.Pool.Exec(ctx, sql, args...)
	ip.observe(ctx, "exec", start, err)
	return tag, err
}

func (ip *InstrumentedPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	rows, err := ip.Pool.Query(ctx, sql, args...)
	ip.observe(ctx, "query", start, err)
	return rows, err
}

// QueryRow defers errors to Scan, so only the duration is observable here.
func (ip *InstrumentedPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	start := time.Now()
	row := ip.Pool.QueryRow(ctx, sql, args...)
	ip.observe(ctx, "query_row", start, nil)
	return row
}
