package eligibility

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/platform/auth"
)

type Handler struct {
	verifier *Verifier
}

func NewHandler(verifier *Verifier) *Handler {
	return &Handler{verifier: verifier}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/eligibility/verify", h.Verify, auth.RequireRole("staff", "scheduler"))
	g.GET("/eligibility/snapshots", h.History, auth.RequireRole("staff", "scheduler"))
	g.GET("/eligibility/logs", h.Logs, auth.RequireRole("staff"))
}

type verifyRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	PayerID   uuid.UUID `json:"payer_id"`
}

func (h *Handler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PatientID == uuid.Nil || req.PayerID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id and payer_id are required")
	}

	result, err := h.verifier.Verify(c.Request().Context(), req.PatientID, req.PayerID)
	if errors.Is(err, ErrUnavailable) {
		return echo.NewHTTPError(http.StatusBadGateway, "payer unreachable and no prior snapshot on file")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "eligibility verification failed")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) History(c echo.Context) error {
	patientID, payerID, err := pairParams(c)
	if err != nil {
		return err
	}

	snapshots, err := h.verifier.History(c.Request().Context(), patientID, payerID, 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list snapshots")
	}
	return c.JSON(http.StatusOK, snapshots)
}

func (h *Handler) Logs(c echo.Context) error {
	patientID, payerID, err := pairParams(c)
	if err != nil {
		return err
	}

	logs, err := h.verifier.Logs(c.Request().Context(), patientID, payerID, 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list verification log")
	}
	return c.JSON(http.StatusOK, logs)
}

func pairParams(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	payerID, err := uuid.Parse(c.QueryParam("payer_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid payer_id")
	}
	return patientID, payerID, nil
}
