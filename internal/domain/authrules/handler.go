package authrules

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/platform/auth"
)

type Handler struct {
	resolver *Resolver
}

func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/auth-rules", h.Resolve, auth.RequireRole("staff", "scheduler"))
	g.GET("/payers/:id/auth-rules", h.ListByPayer, auth.RequireRole("staff"))
	g.PUT("/auth-rules", h.Save, auth.RequireRole("admin"))
}

// Resolve answers the requirement for ?payer_id=&service_code=.
func (h *Handler) Resolve(c echo.Context) error {
	payerID, err := uuid.Parse(c.QueryParam("payer_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payer_id")
	}
	serviceCode := c.QueryParam("service_code")
	if serviceCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "service_code is required")
	}

	req, err := h.resolver.Resolve(c.Request().Context(), payerID, serviceCode)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve authorization rule")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ListByPayer(c echo.Context) error {
	payerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payer ID")
	}

	rules, err := h.resolver.ListByPayer(c.Request().Context(), payerID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list rules")
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) Save(c echo.Context) error {
	var rule Rule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.resolver.Save(c.Request().Context(), &rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rule)
}
