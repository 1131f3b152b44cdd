// Package v1 is the HTTP API of the detection funnel.
package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/servicefunnel/internal/observability"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/funnel"
	"github.com/hrygo/servicefunnel/plugin/ai/memory"
	ratelimit "github.com/hrygo/servicefunnel/server/middleware"
)

// Detector runs turns of dialogs.
type Detector interface {
	DetectService(ctx context.Context, utterance string, dc funnel.DetectContext) *funnel.DetectResult
	Reset(ctx context.Context, dialogID string) error
}

// CatalogReloader refreshes the service catalog.
type CatalogReloader interface {
	Reload(ctx context.Context) (*catalog.Snapshot, error)
}

// APIV1Service serves the dialog, catalog and metrics endpoints.
type APIV1Service struct {
	Funnel  Detector
	Catalog CatalogReloader
	Metrics *observability.Metrics
	// Window keeps the transcript of callers that do not send one.
	Window  *memory.Window
	Limiter *ratelimit.RateLimiter
	Version string
}

// NewAPIV1Service creates the API service.
func NewAPIV1Service(detector Detector, reloader CatalogReloader, metrics *observability.Metrics, window *memory.Window) *APIV1Service {
	return &APIV1Service{
		Funnel:  detector,
		Catalog: reloader,
		Metrics: metrics,
		Window:  window,
		Limiter: ratelimit.NewRateLimiter(0, 0),
	}
}

// RegisterRoutes registers the API on the Echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelDebug
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			slog.Log(c.Request().Context(), level, "http request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64(observability.LogFieldDuration, v.Latency.Milliseconds()))
			return nil
		},
	}))
	e.Use(middleware.BodyLimit("64K"))

	e.GET("/healthz", s.Healthz)

	api := e.Group("/api/v1")
	dialogs := api.Group("/dialogs", s.Limiter.Middleware(func(c echo.Context) string { return c.Param("id") }))
	dialogs.POST("/:id/detect", s.Detect)
	dialogs.DELETE("/:id", s.ResetDialog)

	api.POST("/catalog/reload", s.ReloadCatalog)
	api.GET("/metrics", s.GetMetrics)
}
