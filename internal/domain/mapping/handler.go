package mapping

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/termbridge/termbridge/pkg/errs"
)

// Handler provides REST endpoints for the mapping table.
type Handler struct {
	svc *Service
}

// NewHandler creates a new mapping handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers mapping routes on the API group. writeGuard
// middleware applies to the write routes only; curation (including EXACT
// promotion) is gated, reads are not.
func (h *Handler) RegisterRoutes(api *echo.Group, writeGuard ...echo.MiddlewareFunc) {
	mappings := api.Group("/mappings")
	mappings.POST("", h.Add, writeGuard...)
	mappings.GET("/:sourceCode", h.List)
	mappings.DELETE("/:sourceCode", h.Remove, writeGuard...)
}

func httpError(err error) error {
	return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
}

// Add handles POST /api/v1/mappings.
func (h *Handler) Add(c echo.Context) error {
	var req AddRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	entry, err := h.svc.AddMapping(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// List handles GET /api/v1/mappings/:sourceCode. Unknown source codes are a
// 404 even though a known code with no entries returns an empty list.
func (h *Handler) List(c echo.Context) error {
	entries, err := h.svc.GetMappings(c.Request().Context(), c.Param("sourceCode"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// Remove handles DELETE /api/v1/mappings/:sourceCode?target_system=&target_code=.
func (h *Handler) Remove(c echo.Context) error {
	targetSystem := c.QueryParam("target_system")
	if targetSystem == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'target_system' is required")
	}
	err := h.svc.RemoveMapping(c.Request().Context(),
		c.Param("sourceCode"), targetSystem, c.QueryParam("target_code"))
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
