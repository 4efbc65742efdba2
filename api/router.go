// Package api is the operator-facing HTTP surface: health, metrics, flight
// administration and ticket support.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Domenick1991/ftms/internal/registry"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/Domenick1991/ftms/internal/service/booking"
	"github.com/Domenick1991/ftms/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type RegistryStats interface {
	Stats() registry.Stats
}

type RouterConfig struct {
	Opener     repository.Opener
	Flights    flights.FlightUseCase
	Booking    booking.BookingUseCase
	Registry   RegistryStats
	SwaggerDir string
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	NewFlightHandler(cfg.Flights, cfg.Opener).Register(apiGroup.Group("/flights"))
	NewTicketHandler(cfg.Booking, cfg.Opener).Register(apiGroup.Group("/tickets"))
	if cfg.Registry != nil {
		apiGroup.GET("/registry", func(c *gin.Context) {
			c.JSON(http.StatusOK, cfg.Registry.Stats())
		})
	}

	if cfg.SwaggerDir != "" {
		router.Static("/swagger", cfg.SwaggerDir)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/admin.swagger.json"))))
	}

	return router
}

// openHandle opens a short-lived store handle for one admin request.
func openHandle(c *gin.Context, opener repository.Opener) (repository.Handle, bool) {
	h, err := opener.Open(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return nil, false
	}
	return h, true
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
