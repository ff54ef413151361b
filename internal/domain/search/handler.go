package search

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/termbridge/termbridge/pkg/errs"
	"github.com/termbridge/termbridge/pkg/pagination"
)

// Handler provides REST endpoints for searching and rebuilding the index.
type Handler struct {
	engine *Engine
}

// NewHandler creates a new search handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes registers search routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/terminology/search", h.Search)
	api.POST("/terminology/index/$rebuild", h.Rebuild)
}

// Search handles GET /api/v1/terminology/search?q=...
func (h *Handler) Search(c echo.Context) error {
	p := pagination.FromContext(c)
	matches, err := h.engine.Search(c.QueryParam("q"), p.Limit)
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, matches)
}

// Rebuild handles POST /api/v1/terminology/index/$rebuild. Writes already
// trigger a rebuild; the endpoint exists for recovery and for bulk loads
// done directly against the database.
func (h *Handler) Rebuild(c echo.Context) error {
	if err := h.engine.Rebuild(c.Request().Context()); err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "rebuilt"})
}
