package auditevent

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/platform/auth"
	"github.com/rcm/rcm/pkg/pagination"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/audit-log", h.List, auth.RequireRole("admin"))
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	userID := c.QueryParam("user_id")
	resource := c.QueryParam("resource")

	items, total, err := h.repo.List(c.Request().Context(), userID, resource, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list access records")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}
