package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthResponse is the liveness answer.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// GetMetrics returns the funnel counters
// GET /api/v1/metrics
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	if s.Metrics == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "metrics are disabled"})
	}
	return c.JSON(http.StatusOK, s.Metrics.Snapshot())
}

// Healthz reports liveness.
// GET /healthz
func (s *APIV1Service) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.Version})
}
