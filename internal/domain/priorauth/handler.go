package priorauth

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
	builder *Builder
}

func NewHandler(service *Service, builder *Builder) *Handler {
	return &Handler{service: service, builder: builder}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/prior-auth", h.List, auth.RequireRole("staff", "scheduler"))
	g.POST("/prior-auth", h.Initiate, auth.RequireRole("staff", "scheduler"))
	g.GET("/prior-auth/:id", h.Get, auth.RequireRole("staff", "scheduler"))
	g.GET("/prior-auth/:id/transitions", h.Transitions, auth.RequireRole("staff"))

	g.POST("/prior-auth/:id/package", h.BuildPackage, auth.RequireRole("staff"))
	g.GET("/prior-auth/:id/package", h.GetPackage, auth.RequireRole("staff"))
	g.POST("/prior-auth/:id/package/review", h.ReviewPackage, auth.RequireRole("staff"))

	g.POST("/prior-auth/:id/submit", h.Submit, auth.RequireRole("staff"))
	g.POST("/prior-auth/:id/decision", h.Decide, auth.RequireRole("staff"))
	g.POST("/prior-auth/:id/withdraw", h.Withdraw, auth.RequireRole("staff"))
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	status := c.QueryParam("status")

	requests, total, err := h.service.List(c.Request().Context(), status, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list prior auth requests")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(requests, total, p.Limit, p.Offset))
}

func (h *Handler) Initiate(c echo.Context) error {
	var params InitiateParams
	if err := c.Bind(&params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	req, assessment, err := h.service.Initiate(c.Request().Context(), params)
	if errors.Is(err, ErrNotRequired) {
		return echo.NewHTTPError(http.StatusConflict, "prior authorization is not required for this service")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"request": req,
		"risk":    assessment,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	req, err := h.service.GetByID(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "prior auth request not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get prior auth request")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) Transitions(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	transitions, err := h.service.Transitions(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list transitions")
	}
	return c.JSON(http.StatusOK, transitions)
}

func (h *Handler) BuildPackage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	pkg, buildErr := h.builder.Build(c.Request().Context(), id)
	if errors.Is(buildErr, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "prior auth request not found")
	}
	if buildErr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, buildErr.Error())
	}
	return c.JSON(http.StatusOK, pkg)
}

func (h *Handler) GetPackage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	pkg, getErr := h.builder.Get(c.Request().Context(), id)
	if errors.Is(getErr, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "package not found")
	}
	if getErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get package")
	}
	return c.JSON(http.StatusOK, pkg)
}

type reviewRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) ReviewPackage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var body reviewRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	reviewer := auth.UserIDFromContext(c.Request().Context())
	pkg, reviewErr := h.builder.Review(c.Request().Context(), id, reviewer, body.Comment)
	if errors.Is(reviewErr, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "package not found")
	}
	if reviewErr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, reviewErr.Error())
	}
	return c.JSON(http.StatusOK, pkg)
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	req, submitErr := h.service.Submit(c.Request().Context(), id)
	switch {
	case errors.Is(submitErr, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "prior auth request not found")
	case errors.Is(submitErr, ErrPackageNotReady):
		return echo.NewHTTPError(http.StatusConflict, submitErr.Error())
	case errors.Is(submitErr, ErrInvalidTransition), errors.Is(submitErr, ErrTerminal):
		return echo.NewHTTPError(http.StatusConflict, submitErr.Error())
	case submitErr != nil:
		return echo.NewHTTPError(http.StatusBadGateway, submitErr.Error())
	}
	return c.JSON(http.StatusOK, req)
}

type decisionRequest struct {
	Outcome    string `json:"outcome"`
	AuthNumber string `json:"auth_number"`
	Reason     string `json:"reason"`
}

func (h *Handler) Decide(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var body decisionRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	req, decideErr := h.service.Decide(c.Request().Context(), id, body.Outcome, body.AuthNumber, body.Reason, actor)
	switch {
	case errors.Is(decideErr, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "prior auth request not found")
	case errors.Is(decideErr, ErrInvalidTransition), errors.Is(decideErr, ErrTerminal):
		return echo.NewHTTPError(http.StatusConflict, decideErr.Error())
	case decideErr != nil:
		return echo.NewHTTPError(http.StatusBadRequest, decideErr.Error())
	}
	return c.JSON(http.StatusOK, req)
}

type withdrawRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Withdraw(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var body withdrawRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	req, withdrawErr := h.service.Withdraw(c.Request().Context(), id, body.Reason)
	switch {
	case errors.Is(withdrawErr, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "prior auth request not found")
	case errors.Is(withdrawErr, ErrTerminal):
		return echo.NewHTTPError(http.StatusConflict, "request already closed")
	case withdrawErr != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to withdraw request")
	}
	return c.JSON(http.StatusOK, req)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request ID")
	}
	return id, nil
}
