package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterOptions struct {
	AllowedOrigins   []string
	AllowCredentials bool
	// RateLimit is requests per second per client IP; zero disables it.
	RateLimit int
	RateBurst int
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Ready holds the dependency probes behind GET /readyz, keyed by name.
	Ready map[string]ReadinessCheck
}

// NewRouter builds the gin engine. ctx bounds background work such as the
// rate limiter sweeper.
func NewRouter(ctx context.Context, h *Handler, log *zap.Logger, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < opts.RateLimit {
			burst = opts.RateLimit
		}
		router.Use(middleware.NewHTTPRateLimitPerIP(ctx, opts.RateLimit, burst, 10_000, time.Hour))
	}
	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: opts.AllowCredentials,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/readyz", readiness(opts.Ready))
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/token", h.Token)

	v1.GET("/me", h.RequireAuth(false), h.Me)

	users := v1.Group("/users", h.RequireAuth(true))
	users.GET("", h.ListUsers)
	users.GET("/:uuid", h.GetUser)
	users.PUT("/:id", h.UpdateUser)
	users.DELETE("/:id", h.DeleteUser)

	return router
}
