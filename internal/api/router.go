package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iauth "github.com/medlemine/ashport/internal/auth"
	"github.com/medlemine/ashport/internal/handlers"
	"github.com/medlemine/ashport/internal/middleware"
	"github.com/medlemine/ashport/internal/realtime"
	"github.com/medlemine/ashport/internal/services"
)

// Dependencies carries the constructed services the router wires together.
type Dependencies struct {
	JWT           *iauth.JWTService
	Admins        *services.AdminService
	Portal        *services.PortalService
	Verifications *services.VerificationService
	Devices       *services.DeviceService
	Subscriptions *services.SubscriptionService
	Relay         *realtime.Relay

	// MetricsEnabled exposes /metrics when true.
	MetricsEnabled bool
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Admins == nil || deps.Portal == nil {
		return nil, fmt.Errorf("account services must be provided")
	}
	if deps.Verifications == nil {
		return nil, fmt.Errorf("verification service must be provided")
	}
	if deps.Devices == nil || deps.Subscriptions == nil {
		return nil, fmt.Errorf("portal services must be provided")
	}
	if deps.Relay == nil {
		return nil, fmt.Errorf("relay must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	r.NoRoute(middleware.NotFoundHandler)

	// Public surface
	r.GET("/health", handlers.Health())
	if deps.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(deps.JWT, deps.Admins, deps.Portal)
	verificationHandler := handlers.NewVerificationHandler(deps.Verifications)
	adminHandler := handlers.NewAdminHandler(deps.Admins)
	deviceHandler := handlers.NewDeviceHandler(deps.Devices)
	subscriptionHandler := handlers.NewSubscriptionHandler(deps.Subscriptions)
	relayHandler := handlers.NewRelayHandler(deps.Relay)

	r.GET("/ws/relay", relayHandler.Serve)

	public := r.Group("/api")
	{
		public.POST("/verifications", verificationHandler.Submit)
		public.POST("/verifications/status-check", verificationHandler.CheckStatus)
		public.POST("/auth/login", authHandler.AdminLogin)
		public.POST("/portal/register", authHandler.PortalRegister)
		public.POST("/portal/login", authHandler.PortalLogin)
		public.GET("/plans", subscriptionHandler.Plans)
	}

	// Admin review dashboard
	admin := r.Group("/api", middleware.AdminAuth(deps.JWT, deps.Admins))
	{
		admin.GET("/auth/me", authHandler.Me)

		admin.GET("/admins", adminHandler.List)
		admin.POST("/admins", middleware.RequireSuperAdmin(), adminHandler.Create)
		admin.PATCH("/admins/:id/active", middleware.RequireSuperAdmin(), adminHandler.SetActive)

		admin.GET("/verifications", verificationHandler.List)
		admin.GET("/verifications/phone/:phone", verificationHandler.Entries)
		admin.GET("/verifications/:id", verificationHandler.Get)
		admin.POST("/verifications/:id/approve", verificationHandler.Approve)
		admin.POST("/verifications/:id/decline", verificationHandler.Decline)
		admin.GET("/verifications/:id/decrypted", verificationHandler.Decrypted)
		admin.DELETE("/verifications/:id", verificationHandler.Delete)
	}

	// Device-subscription portal
	portal := r.Group("/api", middleware.PortalAuth(deps.JWT, deps.Portal))
	{
		portal.POST("/devices", deviceHandler.Register)
		portal.GET("/devices", deviceHandler.List)
		portal.GET("/devices/:id", deviceHandler.Get)
		portal.GET("/devices/:id/qr", deviceHandler.QR)
		portal.DELETE("/devices/:id", deviceHandler.Delete)

		portal.POST("/subscriptions", subscriptionHandler.Purchase)
		portal.GET("/subscriptions", subscriptionHandler.List)
		portal.GET("/subscriptions/:id", subscriptionHandler.Get)
		portal.GET("/subscriptions/:id/progress", subscriptionHandler.Progress)
		portal.POST("/subscriptions/:id/activate", subscriptionHandler.Activate)
	}

	return r, nil
}
