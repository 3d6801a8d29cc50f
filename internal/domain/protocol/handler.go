package protocol

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/auth"
	"github.com/kandyfoma/hk-management-systems-sub000/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	engine      *Engine
	source      Source
	syncTimeout time.Duration
}

// NewHandler returns the protocol API. source may be nil, in which case a
// manual sync reports no_source.
func NewHandler(engine *Engine, source Source, syncTimeout time.Duration) *Handler {
	return &Handler{engine: engine, source: source, syncTimeout: syncTimeout}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	read.GET("/protocols/resolve", h.Resolve)
	read.GET("/protocols/status", h.Status)
	read.GET("/protocols/lint", h.Lint)
	read.GET("/hierarchy/sectors", h.ListSectors)
	read.GET("/positions/search", h.SearchPositions)
	read.GET("/positions/:code/due-date", h.DueDate)
	read.GET("/catalog/exams", h.ListExams)
	read.GET("/catalog/exams/:code", h.GetExam)
	read.GET("/visit-types", h.ListVisitTypes)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/protocols/sync", h.Sync)
}

func (h *Handler) Resolve(c echo.Context) error {
	position := c.QueryParam("position")
	visitType := c.QueryParam("visit_type")
	if position == "" || visitType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "position and visit_type are required")
	}
	return c.JSON(http.StatusOK, h.engine.Resolve(position, VisitType(visitType)))
}

func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Status())
}

func (h *Handler) Lint(c echo.Context) error {
	snap := h.engine.Index().Snapshot()
	return c.JSON(http.StatusOK, Validate(snap.Sectors, snap.Catalog))
}

func (h *Handler) Sync(c echo.Context) error {
	ctx := c.Request().Context()
	if h.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.syncTimeout)
		defer cancel()
	}

	status := h.engine.Sync(ctx, h.source)
	switch {
	case status.OK:
		return c.JSON(http.StatusOK, status)
	case status.Reason == ReasonNoSource:
		return c.JSON(http.StatusServiceUnavailable, status)
	default:
		return c.JSON(http.StatusBadGateway, status)
	}
}

func (h *Handler) ListSectors(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Index().Sectors())
}

func (h *Handler) SearchPositions(c echo.Context) error {
	pg := pagination.FromContext(c)
	results := h.engine.Search(c.QueryParam("q"))
	return c.JSON(http.StatusOK, pagination.Page(results, pg))
}

// DueDateResponse tells when a visit performed on VisitDate must be repeated.
type DueDateResponse struct {
	PositionCode   string    `json:"position_code"`
	VisitType      VisitType `json:"visit_type"`
	VisitDate      string    `json:"visit_date"`
	HasProtocol    bool      `json:"has_protocol"`
	ValidityMonths int       `json:"validity_months"`
	NextDueDate    *string   `json:"next_due_date"`
}

func (h *Handler) DueDate(c echo.Context) error {
	code := c.Param("code")
	visitType := VisitType(c.QueryParam("visit_type"))
	if visitType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "visit_type is required")
	}

	visitDate := time.Now().UTC()
	if v := c.QueryParam("visit_date"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "visit_date must be YYYY-MM-DD")
		}
		visitDate = d
	}

	res := h.engine.Resolve(code, visitType)
	if res.Position.Code == "" {
		return echo.NewHTTPError(http.StatusNotFound, "position not found")
	}

	resp := DueDateResponse{
		PositionCode: code,
		VisitType:    visitType,
		VisitDate:    visitDate.Format(dateLayout),
		HasProtocol:  res.HasProtocol,
	}
	if res.Protocol != nil {
		resp.ValidityMonths = res.Protocol.ValidityMonths
		if due, ok := res.Protocol.NextDueDate(visitDate); ok {
			s := due.Format(dateLayout)
			resp.NextDueDate = &s
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListExams(c echo.Context) error {
	category := ExamCategory(c.QueryParam("category"))
	if category != "" && !category.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown exam category")
	}
	return c.JSON(http.StatusOK, h.engine.Index().ExamsByCategory(category))
}

func (h *Handler) GetExam(c echo.Context) error {
	exam, ok := h.engine.Index().Exam(c.Param("code"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "exam not found")
	}
	return c.JSON(http.StatusOK, exam)
}

func (h *Handler) ListVisitTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, KnownVisitTypes)
}
