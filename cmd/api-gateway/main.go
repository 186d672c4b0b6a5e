package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/office-scheduler/api/swagger"
	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/handler"
	"github.com/noah-isme/office-scheduler/internal/middleware"
	"github.com/noah-isme/office-scheduler/internal/models"
	"github.com/noah-isme/office-scheduler/internal/repository"
	"github.com/noah-isme/office-scheduler/internal/service"
	"github.com/noah-isme/office-scheduler/pkg/cache"
	"github.com/noah-isme/office-scheduler/pkg/config"
	"github.com/noah-isme/office-scheduler/pkg/database"
	"github.com/noah-isme/office-scheduler/pkg/export"
	"github.com/noah-isme/office-scheduler/pkg/jobs"
	"github.com/noah-isme/office-scheduler/pkg/logger"
	corsmiddleware "github.com/noah-isme/office-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/office-scheduler/pkg/middleware/requestid"
)

// @title Office Scheduler API
// @version 1.0.0
// @description Event scheduling with participant conflict detection, RSVP tracking and a conflict ledger.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	cacheSvc := newCacheService(ctx, cfg, metrics, logr)

	notifications := service.NewNotificationService(service.NewLogNotifier(logr), jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, metrics, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := newRouter(cfg, db, cacheSvc, notifications, metrics, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newCacheService(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.CacheService {
	if !cfg.ConflictCache.Enabled {
		return service.NewCacheService(nil, metrics, cfg.ConflictCache.TTL, logr, false)
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, conflict cache disabled", zap.Error(err))
		return service.NewCacheService(nil, metrics, cfg.ConflictCache.TTL, logr, false)
	}
	return service.NewCacheService(repository.NewCacheRepository(client, cache.KeyPrefix, logr), metrics, cfg.ConflictCache.TTL, logr, true)
}

func newRouter(cfg *config.Config, db *sqlx.DB, cacheSvc *service.CacheService, notifications *service.NotificationService, metrics *service.MetricsService, logr *zap.Logger) *gin.Engine {
	loc := cfg.Calendar.Location()
	validate := validator.New()

	eventRepo := repository.NewEventRepository(db)
	rsvpRepo := repository.NewRsvpRepository(db)
	conflictRepo := repository.NewConflictRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	userRepo := repository.NewUserRepository(db)

	detector := service.NewConflictDetector(eventRepo, userRepo, metrics, logr)
	eventSvc := service.NewEventService(eventRepo, rsvpRepo, conflictRepo, attachmentRepo, userRepo, detector, db,
		cacheSvc, notifications, metrics, validate, logr, service.EventServiceConfig{
			Location: loc,
			Policy:   calendar.Policy{WeekendLock: cfg.Calendar.WeekendLock},
		})
	rsvpSvc := service.NewRsvpService(eventRepo, rsvpRepo, db, notifications, metrics, validate, logr, loc, nil)
	ledgerSvc := service.NewLedgerService(eventRepo, conflictRepo, detector, db, cacheSvc, logr, export.NewCSVExporter(), export.NewPDFExporter())
	feedSvc := service.NewFeedService(eventRepo, logr, loc)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	eventHandler := handler.NewEventHandler(eventSvc)
	rsvpHandler := handler.NewRsvpHandler(rsvpSvc)
	conflictHandler := handler.NewConflictHandler(ledgerSvc)
	feedHandler := handler.NewFeedHandler(feedSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Docs.Enabled && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	audit := func(action string) gin.HandlerFunc {
		return middleware.Audit(userRepo, logr, action, "event")
	}
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	events := api.Group("/events")
	events.GET("", eventHandler.List)
	events.POST("", audit("event.create"), eventHandler.Create)
	events.GET("/:id", eventHandler.Get)
	events.PUT("/:id", audit("event.update"), eventHandler.Update)
	events.DELETE("/:id", audit("event.delete"), eventHandler.Delete)
	events.POST("/:id/cancel", audit("event.cancel"), eventHandler.Cancel)
	events.POST("/:id/reschedule", audit("event.reschedule"), eventHandler.Reschedule)
	events.POST("/:id/rsvp", audit("rsvp.submit"), rsvpHandler.Submit)
	events.GET("/:id/rsvps", rsvpHandler.List)
	events.GET("/:id/conflicts", conflictHandler.ForEvent)
	events.POST("/:id/conflicts/refresh", adminOnly, audit("conflict.refresh"), conflictHandler.Refresh)

	conflicts := api.Group("/conflicts")
	conflicts.POST("/check", eventHandler.CheckConflict)
	conflicts.GET("", conflictHandler.List)
	conflicts.GET("/count", conflictHandler.Count)
	conflicts.GET("/export", middleware.Audit(userRepo, logr, "conflict.export", "conflict_ledger"), conflictHandler.Export)

	api.GET("/invitations", rsvpHandler.Invitations)
	api.GET("/calendar/feed.ics", feedHandler.Feed)
	api.GET("/metrics/summary", adminOnly, metricsHandler.Summary)

	return r
}
