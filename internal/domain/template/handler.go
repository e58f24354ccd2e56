package template

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/RUPHAsoft/healthcare/internal/platform/auth"
	"github.com/RUPHAsoft/healthcare/internal/validation"
)

type Handler struct {
	sync *Synchronizer
}

func NewHandler(sync *Synchronizer) *Handler {
	return &Handler{sync: sync}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "lab_tech", "billing_clerk"))
	readGroup.GET("/lab-test-templates", h.List)
	readGroup.GET("/lab-test-templates/:code", h.Get)

	writeGroup := api.Group("", auth.RequireRole("admin", "lab_tech"))
	writeGroup.POST("/lab-test-templates", h.Create)
	writeGroup.PUT("/lab-test-templates/:code", h.Update)
	writeGroup.DELETE("/lab-test-templates/:code", h.Delete)
	writeGroup.POST("/lab-test-templates/:code/disabled", h.SetDisabled)

	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/lab-test-templates/:code/rename", h.Rename)
}

func (h *Handler) Create(c echo.Context) error {
	var tpl LabTestTemplate
	if err := c.Bind(&tpl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.sync.Create(c.Request().Context(), &tpl); err != nil {
		return templateError(err)
	}
	return c.JSON(http.StatusCreated, tpl)
}

func (h *Handler) Get(c echo.Context) error {
	tpl, err := h.sync.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return templateError(err)
	}
	return c.JSON(http.StatusOK, tpl)
}

func (h *Handler) Update(c echo.Context) error {
	var tpl LabTestTemplate
	if err := c.Bind(&tpl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tpl.Code = c.Param("code")
	if err := h.sync.Update(c.Request().Context(), &tpl); err != nil {
		return templateError(err)
	}
	return c.JSON(http.StatusOK, tpl)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.sync.Delete(c.Request().Context(), c.Param("code")); err != nil {
		return templateError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetDisabled(c echo.Context) error {
	var req struct {
		Disabled bool `json:"disabled"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.sync.EnableDisable(c.Request().Context(), c.Param("code"), req.Disabled); err != nil {
		return templateError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Rename(c echo.Context) error {
	var req struct {
		NewCode string `json:"new_code"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	scope := auth.ScopeFromContext(c.Request().Context())
	newCode, err := h.sync.RenameCode(c.Request().Context(), scope, c.Param("code"), req.NewCode)
	if err != nil {
		return templateError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"code": newCode})
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
	tpls, total, err := h.sync.List(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"templates": tpls, "total": total})
}

func templateError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "lab test template not found")
	case errors.Is(err, ErrElevationRequired):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case validation.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case validation.IsConflict(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
