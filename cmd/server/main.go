package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/config"
	"github.com/staybook/reservation-engine/internal/database"
	"github.com/staybook/reservation-engine/internal/handlers"
	"github.com/staybook/reservation-engine/internal/middleware"
	"github.com/staybook/reservation-engine/internal/services"
	"github.com/staybook/reservation-engine/pkg/jwt"
	"github.com/staybook/reservation-engine/pkg/tracing"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting reservation engine")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		shutdownTracing, err = tracing.Init(cfg.Tracing.JaegerEndpoint, cfg.Tracing.ServiceName)
		if err != nil {
			logger.Fatalf("Failed to initialize tracing: %v", err)
		}
		logger.WithField("endpoint", cfg.Tracing.JaegerEndpoint).Info("Tracing enabled")
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	migrator := database.NewMigrator(db.DB, logger)
	if pending, err := migrator.Pending(context.Background()); err != nil {
		logger.WithError(err).Warn("Could not read migration state")
	} else if len(pending) > 0 {
		logger.WithField("pending", pending).Warn("Database has pending migrations; run `bookingctl migrate`")
	}

	// Listing cache: Redis when configured, otherwise per-process memory
	var redisClient *redis.Client
	var listingStore services.ListingStore
	if cfg.ListingCache.Enabled {
		if cfg.Redis.Addr != "" {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()
			listingStore = services.NewRedisListingStore(redisClient)
			logger.WithField("addr", cfg.Redis.Addr).Info("Listing cache backed by Redis")
		} else {
			listingStore = services.NewMemoryListingStore()
			logger.Info("Listing cache backed by process memory")
		}
	}

	logger.Info("Initializing services...")

	propertyRepository := database.NewPropertyRepository(db.DB)
	reservationRepository := database.NewReservationRepository(db.DB)
	outboxRepository := database.NewOutboxRepository(db.DB)
	alertRepository := database.NewBookingAlertRepository(db.DB)
	auditRepository := database.NewPaymentAuditRepository(db.DB, logger)

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	processor := services.NewStripeProcessor(cfg.Stripe, logger)
	auditService := services.NewPaymentAuditService(auditRepository, cfg.Security.EnableAuditLog, logger)
	queryTimeout := cfg.Database.QueryTimeout

	availabilityService := services.NewAvailabilityService(reservationRepository, queryTimeout, logger)
	checkoutService := services.NewCheckoutService(
		propertyRepository, availabilityService, processor, auditService,
		cfg.Frontend.URL, queryTimeout, logger,
	)
	reconciliationService := services.NewReconciliationService(
		processor, propertyRepository, reservationRepository, alertRepository, auditService,
		queryTimeout, logger,
	)
	listingService := services.NewListingService(propertyRepository, listingStore, cfg.ListingCache.TTL, queryTimeout, logger)
	queryService := services.NewReservationQueryService(reservationRepository, propertyRepository, queryTimeout)
	alertService := services.NewAlertService(alertRepository, logger)

	var mailer services.Mailer
	if cfg.SMTP.Host != "" {
		mailer = services.NewSMTPMailer(cfg.SMTP)
	} else {
		logger.Warn("SMTP_HOST not set, invoices will be logged instead of sent")
		mailer = services.NewLogMailer(logger)
	}
	dispatcher := services.NewNotificationDispatcher(outboxRepository, mailer, cfg.Outbox, logger)

	cronService := services.NewCronService(dispatcher, alertService, cfg.Outbox.Schedule, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	logger.Info("Services initialized")

	if err := handlers.RegisterValidators(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}

	h := &handlers.Handlers{
		Checkout:    handlers.NewCheckoutHandler(checkoutService, logger),
		Payment:     handlers.NewPaymentHandler(reconciliationService, logger),
		Listing:     handlers.NewListingHandler(listingService, availabilityService, queryService, logger),
		Reservation: handlers.NewReservationHandler(queryService, logger),
		AdminAlert:  handlers.NewAdminAlertHandler(alertService, logger),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		router.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	}
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db, redisClient))
	router.GET("/health/jobs", func(c *gin.Context) {
		c.JSON(http.StatusOK, cronService.GetJobStatus())
	})

	handlers.RegisterRoutes(router, h, jwtService)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Stopping cron service...")
	cronService.Stop()

	if err := shutdownTracing(ctx); err != nil {
		logger.WithError(err).Warn("Failed to flush traces")
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"route":      c.FullPath(),
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}
		if userCtx, ok := middleware.GetUserContext(c); ok {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed")
		}
	}
}

// healthCheckHandler reports database and cache reachability
func healthCheckHandler(db database.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		}

		if err := db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "unhealthy"
			body["error"] = err.Error()
		}

		// the cache is optional: an unreachable Redis degrades but does not fail health
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				body["cache"] = "degraded"
			} else {
				body["cache"] = "healthy"
			}
		}

		c.JSON(status, body)
	}
}
