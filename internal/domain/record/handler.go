package record

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/termbridge/termbridge/pkg/errs"
	"github.com/termbridge/termbridge/pkg/pagination"
)

// Handler provides REST endpoints for the terminology record store.
type Handler struct {
	svc *Service
}

// NewHandler creates a new record handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers terminology record routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	codes := api.Group("/terminology/codes")
	codes.POST("", h.Create)
	codes.GET("", h.List)
	codes.GET("/:code", h.Get)
	codes.PATCH("/:code", h.Update)
	codes.DELETE("/:code", h.Delete)
	api.POST("/terminology/$ingest", h.Ingest)
}

func httpError(err error) error {
	return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
}

// Create handles POST /api/v1/terminology/codes.
func (h *Handler) Create(c echo.Context) error {
	var rec TerminologyRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	created, err := h.svc.Insert(c.Request().Context(), &rec)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

// List handles GET /api/v1/terminology/codes?category=&system=.
func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	filter := Filter{
		Category: c.QueryParam("category"),
		System:   c.QueryParam("system"),
	}
	items, total, err := h.svc.List(c.Request().Context(), filter, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

// Get handles GET /api/v1/terminology/codes/:code.
func (h *Handler) Get(c echo.Context) error {
	rec, err := h.svc.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Update handles PATCH /api/v1/terminology/codes/:code. The code itself is
// immutable; a body carrying a different code is rejected.
func (h *Handler) Update(c echo.Context) error {
	var upd Update
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, err := h.svc.Update(c.Request().Context(), c.Param("code"), &upd)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/terminology/codes/:code?cascade=true.
// Without cascade, a record referenced by mapping entries is refused.
func (h *Handler) Delete(c echo.Context) error {
	cascade, _ := strconv.ParseBool(c.QueryParam("cascade"))
	if err := h.svc.Delete(c.Request().Context(), c.Param("code"), cascade); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Ingest handles POST /api/v1/terminology/$ingest: a JSON array of records
// loaded best-effort, with a per-record outcome report.
func (h *Handler) Ingest(c echo.Context) error {
	var records []*TerminologyRecord
	if err := c.Bind(&records); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	results := h.svc.Ingest(c.Request().Context(), records)
	return c.JSON(http.StatusOK, results)
}
