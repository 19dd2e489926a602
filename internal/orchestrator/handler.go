package orchestrator

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/domain/eligibility"
	"github.com/rcm/rcm/internal/platform/auth"
)

type Handler struct {
	orchestrator *Orchestrator
}

func NewHandler(orchestrator *Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/intake", h.Intake, auth.RequireRole("staff", "scheduler"))
}

// Intake runs the whole front-desk workflow in one call.
func (h *Handler) Intake(c echo.Context) error {
	var p IntakeParams
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.orchestrator.HandleAppointmentRequest(c.Request().Context(), p)
	if errors.Is(err, eligibility.ErrUnavailable) {
		return echo.NewHTTPError(http.StatusBadGateway, "eligibility could not be verified")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, result)
}
