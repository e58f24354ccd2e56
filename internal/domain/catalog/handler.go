package catalog

import (
	"errors"
	"net/http"
	"strconv"

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
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "lab_tech", "billing_clerk"))
	readGroup.GET("/items", h.ListItems)
	readGroup.GET("/items/:code", h.GetItem)
	readGroup.GET("/items/:code/prices", h.ListPrices)

	writeGroup := api.Group("", auth.RequireRole("admin", "billing_clerk"))
	writeGroup.POST("/items", h.CreateItem)
	writeGroup.PUT("/items/:code", h.UpdateItem)
	writeGroup.POST("/items/:code/prices", h.CreatePrice)
}

func (h *Handler) CreateItem(c echo.Context) error {
	var it Item
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateItem(c.Request().Context(), &it); err != nil {
		return catalogError(err)
	}
	return c.JSON(http.StatusCreated, it)
}

func (h *Handler) GetItem(c echo.Context) error {
	it, err := h.svc.GetItem(c.Request().Context(), c.Param("code"))
	if err != nil {
		return catalogError(err)
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	var it Item
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	it.Code = c.Param("code")
	if err := h.svc.UpdateItem(c.Request().Context(), &it); err != nil {
		return catalogError(err)
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) ListItems(c echo.Context) error {
	limit, offset := pageParams(c)
	items, total, err := h.svc.ListItems(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items, "total": total})
}

func (h *Handler) CreatePrice(c echo.Context) error {
	var p ItemPrice
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ItemCode = c.Param("code")
	if err := h.svc.CreatePrice(c.Request().Context(), &p); err != nil {
		return catalogError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPrices(c echo.Context) error {
	prices, err := h.svc.ListPrices(c.Request().Context(), c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, prices)
}

func pageParams(c echo.Context) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func catalogError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	case validation.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case validation.IsConflict(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
