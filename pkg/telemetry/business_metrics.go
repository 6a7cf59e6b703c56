package telemetry

import (
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Business metrics for application-level monitoring
var (
	// Telegram Bot metrics
	TelegramMessagesTotal api.Int64Counter
	TelegramCommandsTotal api.Int64Counter
	TelegramErrorsTotal   api.Int64Counter

	// Login session metrics
	LoginSessionsCreated  api.Int64Counter
	LoginSessionsResolved api.Int64Counter
	LoginSessionsExpired  api.Int64Counter
	LoginPollsTotal       api.Int64Counter

	// Storefront metrics
	CatalogQueriesTotal api.Int64Counter
	CartOperationsTotal api.Int64Counter
	OrdersPlacedTotal   api.Int64Counter
	OrdersActive        api.Int64UpDownCounter

	// Error tracking
	ApplicationErrorsTotal api.Int64Counter
	DatabaseErrorsTotal    api.Int64Counter
)

// InitBusinessMetrics initializes all business-level metrics
func InitBusinessMetrics(provider *metric.MeterProvider) error {
	meter := provider.Meter("business")

	var err error

	// Telegram Bot Metrics
	TelegramMessagesTotal, err = meter.Int64Counter("telegram.messages.total",
		api.WithDescription("Total Telegram messages processed by type"))
	if err != nil {
		return err
	}

	TelegramCommandsTotal, err = meter.Int64Counter("telegram.commands.total",
		api.WithDescription("Total Telegram commands executed by command type"))
	if err != nil {
		return err
	}

	TelegramErrorsTotal, err = meter.Int64Counter("telegram.errors.total",
		api.WithDescription("Total Telegram bot errors by type"))
	if err != nil {
		return err
	}

	// Login Session Metrics
	LoginSessionsCreated, err = meter.Int64Counter("auth.login_sessions.created.total",
		api.WithDescription("Total Telegram login sessions created"))
	if err != nil {
		return err
	}

	LoginSessionsResolved, err = meter.Int64Counter("auth.login_sessions.resolved.total",
		api.WithDescription("Total login sessions resolved by outcome (approved, rejected)"))
	if err != nil {
		return err
	}

	LoginSessionsExpired, err = meter.Int64Counter("auth.login_sessions.expired.total",
		api.WithDescription("Total login sessions observed expired at read time"))
	if err != nil {
		return err
	}

	LoginPollsTotal, err = meter.Int64Counter("auth.login_polls.total",
		api.WithDescription("Total login status polls by result"))
	if err != nil {
		return err
	}

	// Storefront Metrics
	CatalogQueriesTotal, err = meter.Int64Counter("catalog.queries.total",
		api.WithDescription("Total catalog queries by type (list, search, get)"))
	if err != nil {
		return err
	}

	CartOperationsTotal, err = meter.Int64Counter("cart.operations.total",
		api.WithDescription("Total cart operations by type (add, update, remove, clear)"))
	if err != nil {
		return err
	}

	OrdersPlacedTotal, err = meter.Int64Counter("orders.placed.total",
		api.WithDescription("Total orders placed"))
	if err != nil {
		return err
	}

	OrdersActive, err = meter.Int64UpDownCounter("orders.active",
		api.WithDescription("Number of orders not yet delivered or cancelled"))
	if err != nil {
		return err
	}

	// Error Tracking
	ApplicationErrorsTotal, err = meter.Int64Counter("application.errors.total",
		api.WithDescription("Total application errors by component"))
	if err != nil {
		return err
	}

	DatabaseErrorsTotal, err = meter.Int64Counter("database.errors.total",
		api.WithDescription("Total database errors by operation"))
	if err != nil {
		return err
	}

	return nil
}
