// Package di wires the application graph: repositories over the chosen
// store, services, handlers and the background worker.
package di

import (
	"github.com/staybook/staybook/internal/config"
	"github.com/staybook/staybook/internal/database"
	"github.com/staybook/staybook/internal/gateway"
	"github.com/staybook/staybook/internal/handler"
	"github.com/staybook/staybook/internal/metrics"
	"github.com/staybook/staybook/internal/notify"
	"github.com/staybook/staybook/internal/redis"
	"github.com/staybook/staybook/internal/repository"
	"github.com/staybook/staybook/internal/service"
	"github.com/staybook/staybook/internal/worker"
)

// Container holds all dependencies for the service
type Container struct {
	// Infrastructure
	DB      *database.PostgresDB
	Redis   *redis.Client
	Metrics *metrics.Metrics

	// Gateways and sinks
	PaymentGateway gateway.PaymentGateway
	Publisher      notify.Publisher

	// Repositories
	BookingRepo   repository.BookingRepository
	PaymentRepo   repository.PaymentRepository
	PropertyRepo  repository.PropertyRepository
	UserStatsRepo repository.UserStatsRepository

	// Services
	BookingService service.BookingService
	PaymentService service.PaymentService

	// Handlers
	HealthHandler  *handler.HealthHandler
	BookingHandler *handler.BookingHandler
	PaymentHandler *handler.PaymentHandler
	WebhookHandler *handler.WebhookHandler

	// Workers
	ExpiryWorker *worker.ExpiryWorker
}

// ContainerConfig carries the pre-built infrastructure the container
// wires together. DB, Redis and Publisher may be nil: the container
// falls back to memory repositories, no caching and no events.
type ContainerConfig struct {
	Config         *config.Config
	DB             *database.PostgresDB
	Redis          *redis.Client
	PaymentGateway gateway.PaymentGateway
	Publisher      notify.Publisher
	Metrics        *metrics.Metrics
}

// NewContainer builds the dependency graph
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		Metrics:        cfg.Metrics,
		PaymentGateway: cfg.PaymentGateway,
		Publisher:      cfg.Publisher,
	}
	if c.Publisher == nil {
		c.Publisher = notify.NoopPublisher{}
	}

	if c.DB != nil {
		c.PropertyRepo = repository.NewPostgresPropertyRepository(c.DB)
		c.BookingRepo = repository.NewPostgresBookingRepository(c.DB)
		c.PaymentRepo = repository.NewPostgresPaymentRepository(c.DB)
		c.UserStatsRepo = repository.NewPostgresUserStatsRepository(c.DB)
	} else {
		properties := repository.NewMemoryPropertyRepository()
		c.PropertyRepo = properties
		c.BookingRepo = repository.NewMemoryBookingRepository(properties)
		c.PaymentRepo = repository.NewMemoryPaymentRepository()
		c.UserStatsRepo = repository.NewMemoryUserStatsRepository()
	}

	var cache service.PaidDatesCache
	if c.Redis != nil {
		cache = service.NewRedisPaidDatesCache(c.Redis)
	}

	c.BookingService = service.NewBookingService(
		c.BookingRepo,
		c.PropertyRepo,
		cache,
		cfg.Config.Booking.PaidDatesCacheTTL,
		c.Publisher,
		c.Metrics,
	)
	c.PaymentService = service.NewPaymentService(
		c.PaymentRepo,
		c.BookingRepo,
		c.PropertyRepo,
		c.UserStatsRepo,
		c.PaymentGateway,
		c.BookingService,
		c.Publisher,
		c.Metrics,
		cfg.Config.Booking.DefaultCurrency,
	)

	c.HealthHandler = handler.NewHealthHandler(cfg.Config.App.Version, map[string]handler.HealthChecker{
		"database": healthCheckerOrNil(c.DB),
		"redis":    healthCheckerOrNil(c.Redis),
	})
	c.BookingHandler = handler.NewBookingHandler(c.BookingService)
	c.PaymentHandler = handler.NewPaymentHandler(c.PaymentService)
	c.WebhookHandler = handler.NewWebhookHandler(c.PaymentService, cfg.Config.Stripe.WebhookSecret, c.Metrics)

	c.ExpiryWorker = worker.NewExpiryWorker(c.BookingService, cfg.Config.Booking.ExpirySweepInterval)

	return c
}

// healthCheckerOrNil avoids a typed-nil interface when the dependency
// was never connected.
func healthCheckerOrNil[T handler.HealthChecker](v T) handler.HealthChecker {
	var zero T
	if any(v) == any(zero) {
		return nil
	}
	return v
}
