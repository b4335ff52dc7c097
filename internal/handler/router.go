package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/middleware"
	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/internal/service"
)

// Handlers bundles the HTTP handlers registered on the router.
type Handlers struct {
	Auth         *AuthHandler
	Issue        *IssueHandler
	Lifecycle    *LifecycleHandler
	Department   *DepartmentHandler
	Points       *PointsHandler
	Notification *NotificationHandler
	Admin        *AdminHandler
	Metrics      *MetricsHandler
}

// RouterConfig carries router-level settings.
type RouterConfig struct {
	APIPrefix          string
	LoginRateAttempts  int
	LoginRateWindow    time.Duration
	RateLimiterBackend *redis.Client
	ExportsEnabled     bool
	Logger             *zap.Logger
}

// RegisterRoutes mounts all API endpoints on the engine.
func RegisterRoutes(r *gin.Engine, h Handlers, authSvc *service.AuthService, cfg RouterConfig) {
	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login",
			middleware.LoginRateLimit(cfg.RateLimiterBackend, cfg.LoginRateAttempts, cfg.LoginRateWindow, cfg.Logger),
			h.Auth.Login)
		auth.GET("/me", middleware.JWT(authSvc), h.Auth.Me)
	}

	issues := api.Group("/issues", middleware.JWT(authSvc))
	{
		issues.POST("", middleware.RequireRoles(models.RoleCitizen), h.Issue.Submit)
		issues.GET("", h.Issue.List)
		issues.GET("/:id", h.Issue.Get)
		issues.PATCH("/:id", middleware.RequireRoles(models.RoleCitizen), h.Issue.Edit)
		issues.DELETE("/:id", middleware.RequireRoles(models.RoleCitizen), h.Issue.Delete)
		issues.POST("/:id/upvote", middleware.RequireRoles(models.RoleCitizen), h.Issue.Upvote)
		issues.DELETE("/:id/upvote", middleware.RequireRoles(models.RoleCitizen), h.Issue.RemoveUpvote)

		authority := middleware.RequireRoles(models.RoleAuthority, models.RoleAdmin)
		issues.POST("/:id/accept", authority, h.Lifecycle.Accept)
		issues.POST("/:id/decline", authority, h.Lifecycle.Decline)
		issues.POST("/:id/start", authority, h.Lifecycle.StartWork)
		issues.PATCH("/:id/progress", authority, h.Lifecycle.Progress)
	}

	departments := api.Group("/departments", middleware.JWT(authSvc))
	{
		departments.GET("", h.Department.List)
		departments.GET("/performance", middleware.RequireRoles(models.RoleAdmin), h.Department.Performance)
		departments.GET("/:id", h.Department.Get)
		departments.POST("", middleware.RequireRoles(models.RoleAdmin), h.Department.Create)
		departments.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), h.Department.Update)
	}

	points := api.Group("/points", middleware.JWT(authSvc))
	{
		points.GET("/me", h.Points.Mine)
		points.GET("/leaderboard", h.Points.Leaderboard)
	}

	notifications := api.Group("/notifications", middleware.JWT(authSvc))
	{
		notifications.GET("", h.Notification.List)
		notifications.POST("/:id/read", h.Notification.MarkRead)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/sweep", h.Admin.Sweep)
		admin.POST("/recalculate", h.Admin.Recalculate)
		if cfg.ExportsEnabled {
			admin.GET("/export", h.Admin.Export)
		}
	}

	r.GET("/metrics", h.Metrics.Prometheus)
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
}
