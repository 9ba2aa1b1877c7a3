package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ownafarm/ownafarm-gateway/internal/config"
	"github.com/ownafarm/ownafarm-gateway/internal/constants"
	"github.com/ownafarm/ownafarm-gateway/internal/handlers"
	"github.com/ownafarm/ownafarm-gateway/internal/middleware"
)

// Server is the HTTP front of the gateway.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
}

// Deps are the wired handlers the router mounts.
type Deps struct {
	Admin  *handlers.AdminHandler
	Farmer *handlers.FarmerHandler
	Health *handlers.HealthHandler
}

// New builds the router with middleware and routes mounted.
func New(cfg *config.Config, deps Deps) *Server {
	if cfg.Stage == constants.ProdEnvironment {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(configureCORS(cfg.CORSAllowedOrigins))
	router.Use(middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst).Middleware())

	registerRoutes(router, cfg, deps)

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func registerRoutes(router *gin.Engine, cfg *config.Config, deps Deps) {
	router.GET("/health", deps.Health.Health)

	authed := router.Group("/", middleware.APIKeyAuth(cfg.APIKeyHashList()))

	admin := authed.Group("/admin")
	{
		admin.POST("/session", deps.Admin.Login)
		admin.GET("/session", deps.Admin.Session)
		admin.DELETE("/session", deps.Admin.Logout)

		admin.GET("/farmers", deps.Admin.ListFarmers)
		admin.POST("/farmers/:id/approve", deps.Admin.ApproveFarmer)
		admin.POST("/farmers/:id/reject", deps.Admin.RejectFarmer)

		admin.POST("/reconcile", deps.Admin.Reconcile)

		admin.GET("/invoices", deps.Admin.ListInvoices)
		admin.GET("/invoices/:token_id", deps.Admin.GetInvoice)
		admin.GET("/invoices/:token_id/qr", deps.Admin.InvoiceQR)
		admin.GET("/stats", deps.Admin.Stats)
	}

	farmers := authed.Group("/farmers")
	{
		farmers.POST("/registrations", deps.Farmer.Register)
		farmers.POST("/invoices", deps.Farmer.SubmitInvoice)
	}
}

func configureCORS(allowedOrigins string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	if allowedOrigins == "" {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		origins := strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-API-Key",
	}
	corsConfig.ExposeHeaders = []string{
		"X-RateLimit-Limit",
		"X-RateLimit-Remaining",
		"Retry-After",
	}
	corsConfig.MaxAge = 12 * time.Hour

	return cors.New(corsConfig)
}
