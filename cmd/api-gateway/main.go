package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/scholarfund-api/internal/handler"
	"github.com/noah-isme/scholarfund-api/internal/middleware"
	"github.com/noah-isme/scholarfund-api/internal/repository"
	"github.com/noah-isme/scholarfund-api/internal/service"
	"github.com/noah-isme/scholarfund-api/pkg/cache"
	"github.com/noah-isme/scholarfund-api/pkg/config"
	"github.com/noah-isme/scholarfund-api/pkg/database"
	"github.com/noah-isme/scholarfund-api/pkg/jobs"
	"github.com/noah-isme/scholarfund-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/scholarfund-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/scholarfund-api/pkg/middleware/requestid"
	"github.com/noah-isme/scholarfund-api/pkg/notifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, unread counts uncached", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	caseRequests := repository.NewCaseRequestRepository(db)
	approvedCases := repository.NewApprovedCaseRepository(db)
	fees := repository.NewFeeRepository(db)
	sponsorships := repository.NewSponsorshipRepository(db)
	payments := repository.NewPaymentRepository(db)
	notifications := repository.NewNotificationRepository(db)

	notificationSvc := service.NewNotificationService(
		notifications,
		notifier.New(cfg.Notifier, logr),
		redisClient,
		jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
		},
		cfg.Notifications.UnreadCacheTTL,
		metrics,
		logr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	notificationSvc.StartWorkers(ctx)
	defer notificationSvc.StopWorkers()

	feeSvc := service.NewFeeService(fees, validate, logr)
	caseSvc := service.NewCaseService(caseRequests, approvedCases, feeSvc, notificationSvc, metrics, validate, logr)
	sponsorshipSvc := service.NewSponsorshipService(sponsorships, approvedCases, notificationSvc, metrics, validate, logr)
	paymentSvc := service.NewPaymentService(payments, sponsorships, approvedCases, notificationSvc, metrics, validate, logr)

	caseHandler := handler.NewCaseHandler(caseSvc)
	feeHandler := handler.NewFeeHandler(feeSvc)
	sponsorshipHandler := handler.NewSponsorshipHandler(sponsorshipSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, cfg.Receipts.Enabled)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Scrape)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/cases", caseHandler.Submit)
		api.GET("/cases/pending", caseHandler.ListPending)
		api.POST("/cases/:id/approve", caseHandler.Approve)
		api.POST("/cases/:id/reject", caseHandler.Reject)
		api.GET("/cases", caseHandler.ListApproved)
		api.GET("/cases/:id", caseHandler.GetApproved)

		api.POST("/fees", feeHandler.Create)
		api.GET("/fees", feeHandler.List)

		api.POST("/sponsorships", sponsorshipHandler.Create)
		api.GET("/sponsorships", sponsorshipHandler.List)
		api.GET("/sponsorships/:id/transactions", paymentHandler.ListTransactions)
		api.GET("/sponsorships/:id/transactions/export", paymentHandler.ExportHistory)

		api.POST("/payments", paymentHandler.Create)
		api.GET("/transactions/:id/receipt", paymentHandler.Receipt)

		api.GET("/notifications", notificationHandler.List)
		api.PUT("/notifications/:id/viewed", notificationHandler.MarkViewed)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
