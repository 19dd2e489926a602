package scheduling

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/platform/auth"
	"github.com/rcm/rcm/pkg/pagination"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/appointment-requests", h.ListRequests, auth.RequireRole("staff", "scheduler"))
	g.POST("/appointment-requests", h.CreateRequest, auth.RequireRole("staff", "scheduler"))
	g.GET("/appointment-requests/:id", h.GetRequest, auth.RequireRole("staff", "scheduler"))
	g.GET("/appointment-requests/:id/appointment", h.GetAppointment, auth.RequireRole("staff", "scheduler"))
	g.POST("/appointment-requests/:id/withdraw", h.Withdraw, auth.RequireRole("staff", "scheduler"))

	g.POST("/slots", h.CreateSlot, auth.RequireRole("admin", "scheduler"))
}

func (h *Handler) ListRequests(c echo.Context) error {
	p := pagination.FromContext(c)
	status := c.QueryParam("status")

	requests, total, err := h.service.ListRequests(c.Request().Context(), status, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list appointment requests")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(requests, total, p.Limit, p.Offset))
}

func (h *Handler) CreateRequest(c echo.Context) error {
	var req AppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	outcome, err := h.service.CreateRequest(c.Request().Context(), &req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, outcome)
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request ID")
	}

	req, err := h.service.GetRequest(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment request not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get appointment request")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request ID")
	}

	appt, err := h.service.GetAppointmentByRequest(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no appointment for request")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get appointment")
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Withdraw(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request ID")
	}

	req, err := h.service.Withdraw(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment request not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to withdraw request")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) CreateSlot(c echo.Context) error {
	var slot Slot
	if err := c.Bind(&slot); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	slot.Status = SlotOpen

	if err := h.service.CreateSlot(c.Request().Context(), &slot); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, slot)
}
