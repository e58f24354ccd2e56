package billing

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
	readGroup := api.Group("", auth.RequireRole("admin", "billing_clerk"))
	readGroup.GET("/invoices/:id", h.Get)
	readGroup.GET("/patients/:patientId/invoices", h.ListForPatient)

	writeGroup := api.Group("", auth.RequireRole("admin", "billing_clerk"))
	writeGroup.POST("/invoices", h.Create)
}

func (h *Handler) Create(c echo.Context) error {
	var req struct {
		Invoice
		Items []*LineItem `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateInvoice(c.Request().Context(), &req.Invoice, req.Items); err != nil {
		return billingError(err)
	}
	return c.JSON(http.StatusCreated, req.Invoice)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}
	inv, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return billingError(err)
	}
	items, err := h.svc.GetLineItems(c.Request().Context(), id)
	if err != nil {
		return billingError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"invoice": inv, "items": items})
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
	invoices, total, err := h.svc.ListForPatient(c.Request().Context(), patientID, limit, offset)
	if err != nil {
		return billingError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"invoices": invoices, "total": total})
}

func billingError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
	case validation.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
