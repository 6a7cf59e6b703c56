package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jamolstroy/jamolstroy-service/config"
	"github.com/jamolstroy/jamolstroy-service/internal/core/addresses"
	"github.com/jamolstroy/jamolstroy-service/internal/core/auth"
	"github.com/jamolstroy/jamolstroy-service/internal/core/cart"
	"github.com/jamolstroy/jamolstroy-service/internal/core/catalog"
	"github.com/jamolstroy/jamolstroy-service/internal/core/orders"
	"github.com/jamolstroy/jamolstroy-service/internal/core/reviews"
	"github.com/jamolstroy/jamolstroy-service/internal/core/storage"
	"github.com/jamolstroy/jamolstroy-service/internal/core/telegram"
	"github.com/jamolstroy/jamolstroy-service/internal/core/users"
	"github.com/jamolstroy/jamolstroy-service/internal/core/workers"
	"github.com/jamolstroy/jamolstroy-service/internal/infra/postgres"
	"github.com/jamolstroy/jamolstroy-service/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"google.golang.org/grpc"
)

// sessionRetention is how long resolved and expired login sessions stay in
// the table before the sweep removes them.
const sessionRetention = 30 * 24 * time.Hour

type Server struct {
	cfg            *config.Config
	app            *fiber.App
	db             postgres.DB
	redisClient    *redis.Client
	traceProvider  *sdktrace.TracerProvider
	metricProvider *metric.MeterProvider
	loggerProvider interface{ Shutdown(context.Context) error }

	usersService     *users.Service
	authService      *auth.Service
	catalogService   *catalog.Service
	cartService      *cart.Service
	ordersService    *orders.Service
	addressesService *addresses.Service
	reviewsService   *reviews.Service
	workersService   *workers.Service
	storageService   *storage.Service
	botService       *telegram.BotService

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var tracer = otel.Tracer("server")

func New(ctx context.Context, cfg *config.Config, dbConn *pgxpool.Pool, redisClient *redis.Client) *Server {
	traceExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		slog.Error("failed to initialize jaeger exporter", slog.String("error", err.Error()))
		return nil
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OtlpEndpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(grpc.WithUserAgent("jamolstroy-service")),
	)
	if err != nil {
		slog.Error("failed to initialize otlp exporter", slog.String("error", err.Error()))
		return nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceNameKey.String("jamolstroy-service"),
			)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	provider := metric.NewMeterProvider(metric.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("jamolstroy-service"),
	)), metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(15*time.Second))))

	otel.SetMeterProvider(provider)

	if err := telemetry.InitTelemetry(provider, dbConn); err != nil {
		slog.Error("failed to initialize telemetry", slog.String("error", err.Error()))
		return nil
	}

	instrumentedConn, err := telemetry.NewInstrumentedPool(provider, dbConn)
	if err != nil {
		slog.Error("failed to create instrumented pool", slog.String("error", err.Error()))
		return nil
	}

	app := fiber.New(cfg.Fiber())

	serverCtx, cancel := context.WithCancel(ctx)

	logger := slog.Default()

	adminIDs, err := cfg.GetTelegramAdmins()
	if err != nil {
		slog.Error("failed to parse telegram admin ids", slog.String("error", err.Error()))
		cancel()
		return nil
	}

	usersService := users.NewService(instrumentedConn, adminIDs)
	catalogCache := catalog.NewCache(redisClient, logger)
	catalogService := catalog.NewService(instrumentedConn, catalogCache, logger)
	cartService := cart.NewService(instrumentedConn, logger)
	ordersService := orders.NewService(instrumentedConn, logger)
	addressesService := addresses.NewService(instrumentedConn)
	reviewsService := reviews.NewService(instrumentedConn)
	workersService := workers.NewService(instrumentedConn, logger)

	sessionStore := auth.NewPostgresStore(instrumentedConn)
	authService := auth.NewService(sessionStore, usersService, cfg.TelegramBotUsername, logger)

	var storageService *storage.Service
	if cfg.AzureStorageConnectionString != "" || cfg.AzureStorageAccountName != "" {
		storageService, err = storage.NewService(cfg.GetCloudConfig(), logger)
		if err != nil {
			slog.Error("failed to initialize storage service", slog.String("error", err.Error()))
			cancel()
			return nil
		}
	}

	var botService *telegram.BotService
	if cfg.TelegramBotToken != "" {
		stateManager := telegram.NewStateManager(redisClient, logger)
		botService, err = telegram.NewBotService(cfg.TelegramBotToken, cfg.TelegramDebug,
			usersService, authService, ordersService, stateManager, logger)
		if err != nil {
			slog.Error("failed to initialize telegram bot", slog.String("error", err.Error()))
			cancel()
			return nil
		}
		ordersService.SetNotifier(botService)
	}

	return &Server{
		cfg:              cfg,
		app:              app,
		db:               instrumentedConn,
		redisClient:      redisClient,
		traceProvider:    tp,
		metricProvider:   provider,
		usersService:     usersService,
		authService:      authService,
		catalogService:   catalogService,
		cartService:      cartService,
		ordersService:    ordersService,
		addressesService: addressesService,
		reviewsService:   reviewsService,
		workersService:   workersService,
		storageService:   storageService,
		botService:       botService,
		ctx:              serverCtx,
		cancel:           cancel,
	}
}

// SetLoggerProvider hands the OTLP log provider over for shutdown ordering.
func (s *Server) SetLoggerProvider(lp interface{ Shutdown(context.Context) error }) {
	s.loggerProvider = lp
}

func (s *Server) Start() {
	initGlobalMiddlewares(s.app, s.cfg)
	s.registerHttpRoutes()

	if s.botService != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.botService.Start(s.ctx); err != nil && s.ctx.Err() == nil {
				slog.Error("Telegram bot error", slog.String("error", err.Error()))
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSessionSweep()
	}()

	slog.Info("Starting HTTP server", slog.String("address", s.cfg.ServerAddress))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.app.Listen(s.cfg.ServerAddress); err != nil {
			slog.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()
}

// runSessionSweep prunes old terminal login sessions once an hour. Expiry
// itself never depends on the sweep.
func (s *Server) runSessionSweep() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.authService.PruneTerminal(s.ctx, sessionRetention); err != nil {
				slog.Error("Login session sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Server) Shutdown() {
	slog.Info("Shutting down server")

	s.cancel()

	if err := s.app.Shutdown(); err != nil {
		slog.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
	}

	s.wg.Wait()

	if err := s.traceProvider.Shutdown(context.Background()); err != nil {
		slog.Error("Error shutting down trace provider", slog.String("error", err.Error()))
	}

	if err := s.metricProvider.Shutdown(context.Background()); err != nil {
		slog.Error("Error shutting down metric provider", slog.String("error", err.Error()))
	}

	if s.loggerProvider != nil {
		if err := s.loggerProvider.Shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down log provider", slog.String("error", err.Error()))
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			slog.Error("Error closing redis client", slog.String("error", err.Error()))
		}
	}

	s.db.Close()

	slog.Info("Server shut down successfully")
}
