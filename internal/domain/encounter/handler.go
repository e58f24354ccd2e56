package encounter

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
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "lab_tech"))
	readGroup.GET("/encounters", h.List)
	readGroup.GET("/encounters/:id", h.Get)
	readGroup.GET("/encounters/:id/prescriptions", h.GetPrescriptions)

	writeGroup := api.Group("", auth.RequireRole("admin", "physician"))
	writeGroup.POST("/encounters", h.Create)
	writeGroup.PUT("/encounters/:id/prescriptions", h.SavePrescriptions)
}

func (h *Handler) Create(c echo.Context) error {
	var enc Encounter
	if err := c.Bind(&enc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &enc); err != nil {
		return encounterError(err)
	}
	return c.JSON(http.StatusCreated, enc)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	enc, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return encounterError(err)
	}
	return c.JSON(http.StatusOK, enc)
}

func (h *Handler) GetPrescriptions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	lines, err := h.svc.GetPrescriptions(c.Request().Context(), id)
	if err != nil {
		return encounterError(err)
	}
	return c.JSON(http.StatusOK, lines)
}

func (h *Handler) SavePrescriptions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	var req struct {
		Prescriptions []*PrescriptionLine `json:"prescriptions"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	saved, err := h.svc.SavePrescriptions(c.Request().Context(), id, req.Prescriptions)
	if err != nil {
		return encounterError(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) List(c echo.Context) error {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	encs, total, err := h.svc.List(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"encounters": encs, "total": total})
}

func encounterError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "encounter not found")
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
