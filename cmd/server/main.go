package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	appbilling "github.com/wrls/billing/internal/application/billing"
	"github.com/wrls/billing/internal/application/billing/pipeline"
	"github.com/wrls/billing/internal/infrastructure/chargemodule"
	"github.com/wrls/billing/internal/infrastructure/config"
	"github.com/wrls/billing/internal/infrastructure/crm"
	"github.com/wrls/billing/internal/infrastructure/logger"
	"github.com/wrls/billing/internal/infrastructure/metrics"
	"github.com/wrls/billing/internal/infrastructure/persistence"
	"github.com/wrls/billing/internal/infrastructure/queue"
	"github.com/wrls/billing/internal/interfaces/http/handler"
	"github.com/wrls/billing/internal/interfaces/http/middleware"
	"github.com/wrls/billing/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting billing batch engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Register Prometheus collectors
	metrics.Init()

	// Initialize repositories
	batchRepo := persistence.NewGormBatchRepository(db.DB)
	chargeVersionRepo := persistence.NewGormChargeVersionRepository(db.DB)
	yearRepo := persistence.NewGormChargeVersionYearRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	transactionRepo := persistence.NewGormTransactionRepository(db.DB)
	volumeRepo := persistence.NewGormBillingVolumeRepository(db.DB)
	jobRepo := queue.NewGormJobRepository(db.DB)

	// Clients for the charging ledger and the reference data service
	chargeModuleClient := chargemodule.NewClient(cfg.ChargeModule.BaseURL, cfg.ChargeModule.Timeout, log)
	crmClient := crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.Timeout, log)

	// Initialize application services
	populator := appbilling.NewPopulator(chargeVersionRepo, batchRepo, yearRepo, cfg.Billing.SwitchOverDate(), log)
	processor := appbilling.NewChargeProcessor(chargeVersionRepo, invoiceRepo, transactionRepo, volumeRepo, crmClient, log)
	supplementaryService := appbilling.NewSupplementaryService(transactionRepo, invoiceRepo, log)
	refreshService := appbilling.NewRefreshService(batchRepo, invoiceRepo, transactionRepo, chargeModuleClient, log)

	// Wire the stage handlers onto the durable job queue
	orchestrator := pipeline.NewOrchestrator(
		jobRepo,
		batchRepo,
		yearRepo,
		transactionRepo,
		populator,
		processor,
		supplementaryService,
		refreshService,
		chargeModuleClient,
		log,
	)

	workerConfig := queue.DefaultWorkerConfig()
	if cfg.Queue.BatchSize > 0 {
		workerConfig.BatchSize = cfg.Queue.BatchSize
	}
	if cfg.Queue.PollInterval > 0 {
		workerConfig.PollInterval = cfg.Queue.PollInterval
	}
	workerConfig.CleanupEnabled = cfg.Queue.CleanupEnabled
	if cfg.Queue.CleanupRetention > 0 {
		workerConfig.CleanupRetention = cfg.Queue.CleanupRetention
	}
	if cfg.Queue.StaleAfter > 0 {
		workerConfig.StaleAfter = cfg.Queue.StaleAfter
	}
	worker := queue.NewWorker(jobRepo, workerConfig, log)
	orchestrator.Register(worker)

	if cfg.Queue.WorkerEnabled {
		if err := worker.Start(context.Background()); err != nil {
			log.Fatal("Failed to start queue worker", zap.Error(err))
		}
		log.Info("Queue worker started",
			zap.Int("batch_size", workerConfig.BatchSize),
			zap.Duration("poll_interval", workerConfig.PollInterval),
		)
	} else {
		log.Info("Queue worker disabled, batches will not progress on this instance")
	}

	batchService := appbilling.NewBatchService(
		batchRepo,
		yearRepo,
		invoiceRepo,
		transactionRepo,
		chargeModuleClient,
		orchestrator,
		log,
	)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.Metrics())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check and metrics endpoints (outside API versioning)
	engine.GET("/health", healthHandler(db, log))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewBatchHandler(batchService, cfg.Billing.SupplementaryYears))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Queue.WorkerEnabled {
		if err := worker.Stop(ctx); err != nil {
			log.Error("Error stopping queue worker", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
