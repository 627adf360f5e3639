package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dockmap/auth-service/internal/config"
	"github.com/dockmap/auth-service/internal/repository"
	"github.com/dockmap/auth-service/internal/service"
	"github.com/dockmap/auth-service/pkg/database"
	"github.com/dockmap/auth-service/pkg/messaging"
	"github.com/dockmap/auth-service/pkg/observability"
	"go.uber.org/zap"
)

const serviceName = "auth-service"

// EventPublisher is the auth event sink owned by the infrastructure
type EventPublisher interface {
	service.EventPublisher
	Close() error
}

type Infrastructure interface {
	Postgres() *database.Postgres
	Redis() *database.Redis
	Logger() *zap.Logger
	MetricsHandler() http.Handler
	Metrics() *observability.AuthMetrics
	Events() EventPublisher

	Shutdown(ctx context.Context) error
}

type infrastructure struct {
	postgres  *database.Postgres
	redis     *database.Redis
	logger    *zap.Logger
	telemetry *observability.Telemetry
	events    EventPublisher
}

var _ Infrastructure = &infrastructure{}

func NewInfrastructure(ctx context.Context, cfg config.Config) (*infrastructure, error) {
	i := &infrastructure{}

	logger, err := observability.InitLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	i.logger = logger

	postgres, err := database.NewPostgres(ctx, cfg.Postgres.DSN(), cfg.Postgres.ConnectRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	i.postgres = postgres

	// migrate runs after the retrying connect
	if cfg.Postgres.AutoMigrate {
		if err := repository.Migrate(cfg.Postgres.DSN()); err != nil {
			_ = i.postgres.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("Database migrations applied")
	}

	redis, err := database.NewRedis(ctx, cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ConnectRetries)
	if err != nil {
		_ = i.postgres.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	i.redis = redis

	telemetry, err := observability.InitTelemetry(serviceName)
	if err != nil {
		_ = i.postgres.Close()
		_ = i.redis.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	i.telemetry = telemetry

	if cfg.Kafka.Enabled() {
		i.events = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("Publishing auth events to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		i.events = messaging.NopPublisher{}
	}

	return i, nil
}

func (i *infrastructure) Postgres() *database.Postgres {
	return i.postgres
}

func (i *infrastructure) Redis() *database.Redis {
	return i.redis
}

func (i *infrastructure) Logger() *zap.Logger {
	return i.logger
}

func (i *infrastructure) MetricsHandler() http.Handler {
	return i.telemetry.Handler
}

func (i *infrastructure) Metrics() *observability.AuthMetrics {
	return i.telemetry.Metrics
}

func (i *infrastructure) Events() EventPublisher {
	return i.events
}

func (i *infrastructure) Shutdown(ctx context.Context) error {
	// flush pending events before the connections go away
	eventsErr := i.events.Close()

	errs := make(chan error, 3)

	go func() { errs <- i.postgres.Close() }()
	go func() { errs <- i.redis.Close() }()
	go func() { errs <- observability.Shutdown(ctx, i.telemetry, i.logger) }()

	return errors.Join(eventsErr, <-errs, <-errs, <-errs)
}
