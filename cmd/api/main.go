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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/civicdesk/civicdesk-api/api/swagger"
	"github.com/civicdesk/civicdesk-api/internal/handler"
	"github.com/civicdesk/civicdesk-api/internal/middleware"
	"github.com/civicdesk/civicdesk-api/internal/oracle"
	"github.com/civicdesk/civicdesk-api/internal/repository"
	"github.com/civicdesk/civicdesk-api/internal/service"
	"github.com/civicdesk/civicdesk-api/pkg/cache"
	"github.com/civicdesk/civicdesk-api/pkg/config"
	"github.com/civicdesk/civicdesk-api/pkg/database"
	"github.com/civicdesk/civicdesk-api/pkg/logger"
	corsmiddleware "github.com/civicdesk/civicdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/civicdesk/civicdesk-api/pkg/middleware/requestid"
)

// @title CivicDesk API
// @version 1.0.0
// @description Civic issue reporting and lifecycle platform
// @BasePath /api/v1
// @schemes http

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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and rate limiting degrade", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	issueRepo := repository.NewIssueRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	logRepo := repository.NewStatusLogRepository(db)
	detailsRepo := repository.NewWorkDetailsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	notifSvc := service.NewNotificationService(notifRepo, cfg.Notify.Workers, cfg.Notify.MaxRetries, logr)
	notifSvc.Start(ctx)
	defer notifSvc.Stop()

	var intakeSvc *service.IntakeService
	if cfg.Oracle.Enabled {
		dupOracle := oracle.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.Timeout, logr)
		intakeSvc = service.NewIntakeService(issueRepo, deptRepo, dupOracle,
			cfg.Intake.GeoWindowDegrees, cfg.Points.ReportAward, metricsSvc, nil, logr)
	} else {
		intakeSvc = service.NewIntakeService(issueRepo, deptRepo, nil,
			cfg.Intake.GeoWindowDegrees, cfg.Points.ReportAward, metricsSvc, nil, logr)
	}
	lifecycleSvc := service.NewLifecycleService(issueRepo, detailsRepo, logRepo, notifSvc, nil, logr)
	pointsSvc := service.NewPointsService(pointsRepo, cacheRepo, cfg.Points.LeaderboardTTL, cfg.Points.LeaderboardLimit, logr)
	deptSvc := service.NewDepartmentService(deptRepo, nil, logr)
	sweeperSvc := service.NewSweeperService(issueRepo, deptRepo, userRepo, notifSvc, metricsSvc, logr)
	exportSvc := service.NewExportService(deptRepo, nil, nil, logr)

	if cfg.Sweeper.Enabled {
		go sweeperSvc.Run(ctx, cfg.Sweeper.Interval, cfg.Sweeper.RecalcInterval)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handlers := handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		Issue:        handler.NewIssueHandler(intakeSvc, lifecycleSvc),
		Lifecycle:    handler.NewLifecycleHandler(lifecycleSvc),
		Department:   handler.NewDepartmentHandler(deptSvc),
		Points:       handler.NewPointsHandler(pointsSvc),
		Notification: handler.NewNotificationHandler(notifSvc),
		Admin:        handler.NewAdminHandler(sweeperSvc, exportSvc),
		Metrics:      handler.NewMetricsHandler(metricsSvc),
	}
	handler.RegisterRoutes(r, handlers, authSvc, handler.RouterConfig{
		APIPrefix:          cfg.APIPrefix,
		LoginRateAttempts:  cfg.RateLimit.LoginAttempts,
		LoginRateWindow:    cfg.RateLimit.LoginWindow,
		RateLimiterBackend: redisClient,
		ExportsEnabled:     cfg.Exports.Enabled,
		Logger:             logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
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
