package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/handler"
	"github.com/noah-isme/cafe-roster-api/internal/middleware"
	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/service"
	"github.com/noah-isme/cafe-roster-api/pkg/config"
	"github.com/noah-isme/cafe-roster-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/cafe-roster-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/cafe-roster-api/pkg/middleware/requestid"
)

type handlers struct {
	metrics      *handler.MetricsHandler
	staff        *handler.StaffHandler
	availability *handler.AvailabilityHandler
	rules        *handler.RosterRuleHandler
	roster       *handler.RosterHandler
	clock        *handler.ClockHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, verifier middleware.TokenVerifier, h handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	managers := []models.UserRole{models.RoleAdmin, models.RoleManager}
	everyone := append([]models.UserRole{models.RoleStaff}, managers...)
	managersOrSelf := append([]models.UserRole{middleware.RoleSelf}, managers...)

	api := r.Group(cfg.APIPrefix)
	// signed export links carry their own token
	api.GET("/roster/exports/download", h.roster.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(verifier), middleware.WithResponseMeta())

	staff := secured.Group("/staff")
	staff.GET("", middleware.RBAC(managers...), h.staff.List)
	staff.GET("/:id", middleware.RBAC(managersOrSelf...), h.staff.Get)
	staff.GET("/:id/points", middleware.RBAC(managersOrSelf...), h.staff.Points)
	staff.GET("/:id/availability", middleware.RBAC(managersOrSelf...), h.availability.List)
	staff.POST("/:id/availability", middleware.RBAC(managersOrSelf...), h.availability.Upsert)
	staff.PUT("/:id/availability", middleware.RBAC(managersOrSelf...), h.availability.Bulk)

	roster := secured.Group("/roster")
	roster.POST("/rules/parse", middleware.RBAC(managers...), h.rules.Parse)
	roster.POST("/rules", middleware.RBAC(managers...), h.rules.Create)
	roster.GET("/rules", middleware.RBAC(managers...), h.rules.List)
	roster.GET("/rules/:id", middleware.RBAC(managers...), h.rules.Get)
	roster.PATCH("/rules/:id", middleware.RBAC(managers...), h.rules.Update)
	roster.DELETE("/rules/:id", middleware.RBAC(managers...), h.rules.Delete)

	roster.GET("/templates", middleware.RBAC(managers...), h.roster.Templates)
	roster.POST("/generate", middleware.RBAC(managers...), h.roster.Generate)
	roster.GET("/weeks/:week_start", middleware.RBAC(everyone...), h.roster.Week)
	roster.POST("/weeks/:week_start/publish", middleware.RBAC(managers...), h.roster.Publish)
	roster.POST("/weeks/:week_start/export", middleware.RBAC(managers...), h.roster.Export)

	clock := secured.Group("/clock")
	clock.POST("/in", middleware.RBAC(everyone...), h.clock.In)
	clock.POST("/out", middleware.RBAC(everyone...), h.clock.Out)
	clock.GET("/records", middleware.RBAC(managers...), h.clock.Records)
	clock.GET("/records/:id", middleware.RBAC(managers...), h.clock.Record)
	clock.POST("/records/:id/approve", middleware.RBAC(managers...), h.clock.Approve)

	return r
}
