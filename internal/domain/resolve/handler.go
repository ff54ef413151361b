package resolve

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/termbridge/termbridge/pkg/errs"
)

// Handler provides the REST resolution endpoint.
type Handler struct {
	resolver          *Resolver
	defaultCandidates int
}

// NewHandler creates a resolve handler. defaultCandidates caps AMBIGUOUS
// candidate lists for requests that do not pass their own candidates param.
func NewHandler(resolver *Resolver, defaultCandidates int) *Handler {
	if defaultCandidates <= 0 {
		defaultCandidates = DefaultCandidates
	}
	return &Handler{resolver: resolver, defaultCandidates: defaultCandidates}
}

// RegisterRoutes registers the resolve route on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/resolve", h.Resolve)
}

// Resolve handles GET /api/v1/resolve?code=...|q=...&candidates=.
// Exactly one of code/q is expected; code wins when both are present.
func (h *Handler) Resolve(c echo.Context) error {
	code := c.QueryParam("code")
	query := c.QueryParam("q")
	if code == "" && query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "one of 'code' or 'q' is required")
	}

	candidates, _ := strconv.Atoi(c.QueryParam("candidates"))
	if candidates <= 0 {
		candidates = h.defaultCandidates
	}
	result, err := h.resolver.Resolve(c.Request().Context(), code, query, Options{Candidates: candidates})
	if err != nil {
		return echo.NewHTTPError(errs.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
