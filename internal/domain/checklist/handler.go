package checklist

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/checklists", auth.RequireRole(auth.ClinicalRoles...))
	g.POST("", h.BuildChecklist)
	g.POST("/drafts", h.StartDraft)
	g.GET("/drafts/:id", h.GetDraft)
	g.PATCH("/drafts/:id/items/:code", h.UpdateDraftItem)
	g.POST("/drafts/:id/refresh", h.RefreshDraft)
	g.DELETE("/drafts/:id", h.DiscardDraft)
}

func (h *Handler) BuildChecklist(c echo.Context) error {
	var req BuildRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.svc.Build(req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) StartDraft(c echo.Context) error {
	var req BuildRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	d, err := h.svc.StartDraft(c.Request().Context(), req, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDraft(c echo.Context) error {
	d, err := h.svc.GetDraft(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDraftItem(c echo.Context) error {
	var change ItemChange
	if err := c.Bind(&change); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDraftItem(c.Request().Context(), c.Param("id"), c.Param("code"), change)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) RefreshDraft(c echo.Context) error {
	d, err := h.svc.RefreshDraft(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DiscardDraft(c echo.Context) error {
	if err := h.svc.DiscardDraft(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoProtocol):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrDraftNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "draft not found")
	default:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "draft store unavailable").SetInternal(err)
	}
}
