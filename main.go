package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/staybook/staybook/internal/config"
	"github.com/staybook/staybook/internal/database"
	"github.com/staybook/staybook/internal/di"
	"github.com/staybook/staybook/internal/gateway"
	"github.com/staybook/staybook/internal/logger"
	"github.com/staybook/staybook/internal/metrics"
	"github.com/staybook/staybook/internal/middleware"
	"github.com/staybook/staybook/internal/notify"
	"github.com/staybook/staybook/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if _, err := logger.Init(cfg.App.Environment, cfg.App.Debug); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info(fmt.Sprintf("Starting %s (%s)...", cfg.App.Name, cfg.App.Version))

	ctx := context.Background()

	// Database connection. In development the service falls back to
	// memory repositories; production refuses to run without a store.
	var db *database.PostgresDB
	db, err = database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
	})
	if err != nil {
		if cfg.IsProduction() {
			appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
		}
		appLog.Warn(fmt.Sprintf("Database connection failed, using in-memory repositories: %v", err))
	} else {
		defer db.Close()
		appLog.Info("Database connected")
	}

	var redisClient *redis.Client
	redisClient, err = redis.NewClient(ctx, &redis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: time.Second,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Redis connection failed, caching and idempotency disabled: %v", err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		appLog.Info("Redis connected")
	}

	var publisher notify.Publisher
	if cfg.Kafka.Enabled() {
		kafkaPublisher, err := notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.Topic)
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, events disabled: %v", err))
		} else {
			publisher = kafkaPublisher
			defer kafkaPublisher.Close()
			appLog.Info(fmt.Sprintf("Kafka connected, publishing to %s", cfg.Kafka.Topic))
		}
	}

	var paymentGateway gateway.PaymentGateway
	if cfg.Stripe.SecretKey != "" {
		paymentGateway, err = gateway.NewStripeGateway(&gateway.StripeGatewayConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		})
		if err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to create Stripe gateway: %v", err))
		}
		appLog.Info("Using Stripe payment gateway")
	} else {
		mock := gateway.NewMockGateway()
		mock.AutoSucceed = cfg.IsDevelopment()
		paymentGateway = mock
		appLog.Warn("STRIPE_SECRET_KEY not set, using mock payment gateway")
	}

	container := di.NewContainer(&di.ContainerConfig{
		Config:         cfg,
		DB:             db,
		Redis:          redisClient,
		PaymentGateway: paymentGateway,
		Publisher:      publisher,
		Metrics:        metrics.NewDefault(),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Webhook authenticates by signature, not by bearer token.
		v1.POST("/payments/webhook", container.WebhookHandler.Handle)

		authed := v1.Group("")
		authed.Use(middleware.AuthRequired(cfg.JWT.Secret, cfg.JWT.Issuer))

		var idempotency gin.HandlerFunc
		if redisClient != nil {
			idempotency = middleware.Idempotency(middleware.DefaultIdempotencyConfig(redisClient))
		} else {
			idempotency = func(c *gin.Context) { c.Next() }
		}

		bookings := authed.Group("/bookings")
		{
			bookings.POST("", idempotency, container.BookingHandler.Create)
			bookings.GET("", container.BookingHandler.ListMine)
			bookings.GET("/:id", container.BookingHandler.Get)
			bookings.POST("/:id/confirm", container.BookingHandler.Confirm)
			bookings.POST("/:id/cancel", container.BookingHandler.Cancel)
			bookings.POST("/:id/complete", container.BookingHandler.Complete)

			bookings.POST("/:id/payment-intent", container.PaymentHandler.CreateIntent)
			bookings.POST("/:id/refund", idempotency, container.PaymentHandler.Refund)
			bookings.GET("/:id/payment", container.PaymentHandler.GetByBooking)
		}

		authed.GET("/host/bookings", container.BookingHandler.ListHosted)
		authed.POST("/payments/confirm", container.PaymentHandler.Confirm)

		properties := authed.Group("/properties")
		{
			properties.GET("/:id/availability", container.BookingHandler.Availability)
			properties.GET("/:id/paid-dates", container.BookingHandler.PaidDates)
		}
	}

	if err := container.ExpiryWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start expiry worker: %v", err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLog.Info(fmt.Sprintf("Listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down...")

	container.ExpiryWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
