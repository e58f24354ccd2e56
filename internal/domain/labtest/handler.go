package labtest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/RUPHAsoft/healthcare/internal/platform/auth"
	"github.com/RUPHAsoft/healthcare/internal/validation"
)

type Handler struct {
	svc   *Service
	guard *Guard
}

func NewHandler(svc *Service, guard *Guard) *Handler {
	return &Handler{svc: svc, guard: guard}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "lab_tech"))
	readGroup.GET("/lab-tests/:id", h.Get)
	readGroup.GET("/patients/:patientId/lab-tests", h.ListForPatient)

	writeGroup := api.Group("", auth.RequireRole("admin", "lab_tech"))
	writeGroup.POST("/lab-tests/:id/status", h.SetStatus)
	writeGroup.PUT("/lab-tests/:id/results", h.RecordResults)
	writeGroup.POST("/lab-tests/:id/submit", h.Submit)

	removeGroup := api.Group("", auth.RequireRole("admin", "physician"))
	removeGroup.DELETE("/encounters/:encounterId/prescriptions/:lineId/lab-test", h.Remove)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab test id")
	}
	lt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return labTestError(err)
	}
	return c.JSON(http.StatusOK, lt)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	tests, total, err := h.svc.ListForPatient(c.Request().Context(), patientID, limit, offset)
	if err != nil {
		return labTestError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"lab_tests": tests, "total": total})
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab test id")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetStatus(c.Request().Context(), id, req.Status); err != nil {
		return labTestError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecordResults(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab test id")
	}
	var req struct {
		Normal      []NormalResult      `json:"normal_results"`
		Descriptive []DescriptiveResult `json:"descriptive_results"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RecordResults(c.Request().Context(), id, req.Normal, req.Descriptive); err != nil {
		return labTestError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lab test id")
	}
	if err := h.svc.Submit(c.Request().Context(), id); err != nil {
		return labTestError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Remove(c echo.Context) error {
	encounterID, err := uuid.Parse(c.Param("encounterId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription line id")
	}
	if err := h.guard.Remove(c.Request().Context(), encounterID, lineID); err != nil {
		return labTestError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func labTestError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "lab test not found")
	case validation.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case validation.IsGuard(err):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case validation.IsConflict(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
