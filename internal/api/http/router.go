package http

import (
	"github.com/countersight/counter-cloud/internal/alerts"
	"github.com/countersight/counter-cloud/internal/api/http/handler"
	"github.com/countersight/counter-cloud/internal/api/http/middleware"
	"github.com/countersight/counter-cloud/internal/auth"
	"github.com/countersight/counter-cloud/internal/credentials"
	"github.com/countersight/counter-cloud/internal/detection"
	"github.com/countersight/counter-cloud/internal/enrollment"
	"github.com/countersight/counter-cloud/internal/provisioning"
	"github.com/countersight/counter-cloud/internal/telemetry"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Enrollment   *enrollment.Service
	Provisioning *provisioning.Service
	Pipeline     *telemetry.Pipeline
	Detection    *detection.Controller
	Auth         *auth.Service
	Keys         *credentials.Store
	Cameras      *provisioning.CameraPgStore
	Sites        *provisioning.SitePgStore
	Logs         *telemetry.Store
	AlertRules   *alerts.Store

	JWTSecret    string
	WebhookToken string
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	registerHandler := handler.NewRegisterHandler(srvs.Enrollment)
	provisioningHandler := handler.NewProvisioningHandler(srvs.Provisioning, srvs.Sites)
	telemetryHandler := handler.NewTelemetryHandler(srvs.Pipeline)
	camerasHandler := handler.NewCamerasHandler(srvs.Cameras, srvs.Logs)
	detectionHandler := handler.NewDetectionHandler(srvs.Detection)
	authHandler := handler.NewAuthHandler(srvs.Auth)
	alertsHandler := handler.NewAlertsHandler(srvs.AlertRules)

	// Device-facing, token-gated.
	engine.POST("/registerDevice", registerHandler.Register)
	engine.POST("/provisionCamera", provisioningHandler.ProvisionCamera)
	engine.GET("/token-info", provisioningHandler.TokenInfo)
	engine.POST("/token-info", provisioningHandler.TokenInfo)
	engine.POST("/api/cameras/pending", provisioningHandler.ReportPending)

	// Device telemetry, API-key authenticated.
	deviceAPI := engine.Group("/api/detection", middleware.DeviceAPIKeyAuth(srvs.Keys))
	deviceAPI.POST("/counts", telemetryHandler.ReportCounts)

	// Activation webhook, static bearer token.
	engine.POST("/api/cameras/activate",
		middleware.WebhookAuth(srvs.WebhookToken), camerasHandler.Activate)

	// Admin API, JWT authenticated.
	engine.POST("/api/v1/auth/login", authHandler.Login)

	admin := engine.Group("/api/v1", middleware.JWTAuth(srvs.JWTSecret))
	{
		admin.POST("/auth/register",
			middleware.RequireRole(auth.RoleSuperadmin), authHandler.Register)
		admin.POST("/sites",
			middleware.RequireRole(auth.RoleSuperadmin), provisioningHandler.CreateSite)

		admin.POST("/provisioning-tokens",
			middleware.RequireRole(auth.RoleSuperadmin, auth.RoleSubadmin),
			provisioningHandler.GenerateToken)

		admin.GET("/pending-cameras", provisioningHandler.ListPending)
		admin.POST("/pending-cameras/:id/approve",
			middleware.RequireRole(auth.RoleSuperadmin, auth.RoleSubadmin),
			provisioningHandler.Approve)
		admin.DELETE("/pending-cameras/:id",
			middleware.RequireRole(auth.RoleSuperadmin, auth.RoleSubadmin),
			provisioningHandler.Reject)

		admin.GET("/cameras", camerasHandler.List)
		admin.GET("/cameras/:id/logs", camerasHandler.Logs)
		admin.GET("/cameras/:id/stats", camerasHandler.Stats)

		// The controller enforces the per-camera ownership rules; the route
		// level only filters out viewers.
		admin.POST("/cameras/:id/detection/start",
			middleware.RequireRole(auth.RoleSuperadmin, auth.RoleSubadmin),
			detectionHandler.Start)
		admin.POST("/cameras/:id/detection/stop",
			middleware.RequireRole(auth.RoleSuperadmin, auth.RoleSubadmin),
			detectionHandler.Stop)
		admin.GET("/cameras/:id/detection/status", detectionHandler.Status)
		admin.GET("/rpi/health", detectionHandler.Health)

		admin.POST("/alert-rules",
			middleware.RequireRole(auth.RoleSuperadmin, auth.RoleSubadmin),
			alertsHandler.Create)
	}
}
