package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jamolstroy/jamolstroy-service/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"google.golang.org/grpc"
)

const (
	serviceName    = "jamolstroy-service"
	serviceVersion = "1.0.0"
)

// NewObservableLogger builds a logger that writes to the local handler and
// ships every record to the OTLP collector. The returned provider has to be
// shut down together with the rest of the telemetry stack.
func NewObservableLogger(cfg *config.Config) (*slog.Logger, *log.LoggerProvider, error) {
	ctx := context.Background()

	logExporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(cfg.OtlpEndpoint),
		otlploggrpc.WithInsecure(),
		otlploggrpc.WithDialOption(grpc.WithUserAgent(serviceName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	instanceID := serviceName
	if host, hostErr := os.Hostname(); hostErr == nil && host != "" {
		instanceID = serviceName + "-" + host
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.ServiceInstanceIDKey.String(instanceID),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	loggerProvider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(logExporter)),
	)

	otlpHandler := otelslog.NewHandler(serviceName,
		otelslog.WithLoggerProvider(loggerProvider),
	)

	multiHandler := NewMultiHandler(NewLogger(cfg).Handler(), otlpHandler)

	observableLogger := slog.New(multiHandler).With(
		"service", serviceName,
		"version", serviceVersion,
		"environment", cfg.Environment,
	)

	return observableLogger, loggerProvider, nil
}

// MultiHandler fans every record out to all of its handlers. A failing
// handler is reported on stderr and never blocks the others.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			fmt.Fprintf(os.Stderr, "log handler error: %v\n", err)
		}
	}
	return nil
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}
