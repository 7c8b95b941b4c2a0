// Package http is the gin-based REST surface of MedSimplify.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/prometheus"
	"github.com/sneharawat080/medsimplify/internal/interfaces/http/handlers"
	"github.com/sneharawat080/medsimplify/internal/interfaces/http/middleware"
	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
type RouterConfig struct {
	Mode    string
	Version string

	SimplifyHandler *handlers.SimplifyHandler
	HealthHandler   *handlers.HealthHandler

	CORS        *middleware.CORSConfig
	RateLimiter middleware.RateLimiter
	RateLimit   middleware.RateLimitConfig
	Logging     middleware.LoggingConfig

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(middleware.Metrics(cfg.Metrics))
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit, cfg.Metrics, cfg.Logger))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, lab.ErrorBody{Error: lab.ErrorDetail{
			Code:    string(errors.ErrCodeNotFound),
			Message: "endpoint not found",
		}})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, lab.ErrorBody{Error: lab.ErrorDetail{
			Code:    string(errors.ErrCodeBadRequest),
			Message: "method not allowed",
		}})
	})

	r.GET("/", handlers.Info(cfg.Version))

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
		r.GET("/api/health", h.Health)
	}

	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	if h := cfg.SimplifyHandler; h != nil {
		api := r.Group("/api")
		api.POST("/simplify-text", h.SimplifyText)
		api.POST("/simplify", h.SimplifyFile)
		api.GET("/kb/tests", h.ListTests)
		api.GET("/kb/tests/:name", h.GetTest)
	}

	return r
}
