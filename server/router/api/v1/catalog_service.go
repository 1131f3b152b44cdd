package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/internal/observability"
)

// ReloadCatalogResponse reports the size of the reloaded catalog.
type ReloadCatalogResponse struct {
	Services int `json:"services"`
}

// ReloadCatalog forces a catalog refresh. The previous snapshot keeps
// serving when the refresh fails.
// POST /api/v1/catalog/reload
func (s *APIV1Service) ReloadCatalog(c echo.Context) error {
	snap, err := s.Catalog.Reload(c.Request().Context())
	if err != nil {
		slog.Warn("catalog reload failed",
			slog.String(observability.LogFieldErrorCode, string(funnelerrors.GetCodeFromError(err, funnelerrors.ErrCodeInternal))),
			slog.String("error", err.Error()))
		return c.JSON(http.StatusServiceUnavailable, errorBody(err))
	}
	return c.JSON(http.StatusOK, ReloadCatalogResponse{Services: snap.Len()})
}
