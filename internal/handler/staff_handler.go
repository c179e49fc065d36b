package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/service"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
	"github.com/noah-isme/cafe-roster-api/pkg/response"
)

type staffDirectory interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Staff, error)
}

type pointsHistory interface {
	History(ctx context.Context, staffID string, limit int) ([]models.PointsEvent, error)
}

type staffListQuery struct {
	ActiveOnly bool   `form:"active_only"`
	Role       string `form:"role"`
	Search     string `form:"search"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// StaffHandler exposes the staff directory.
type StaffHandler struct {
	staff  staffDirectory
	points pointsHistory
}

// NewStaffHandler constructs the handler.
func NewStaffHandler(staff *service.StaffService, points *service.PointsService) *StaffHandler {
	return &StaffHandler{staff: staff, points: points}
}

// List godoc
// @Summary List staff
// @Tags Staff
// @Produce json
// @Param active_only query bool false "Only active staff"
// @Param role query string false "Role filter"
// @Param search query string false "Name search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /staff [get]
func (h *StaffHandler) List(c *gin.Context) {
	var query staffListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	staff, pagination, err := h.staff.List(c.Request.Context(), models.StaffFilter{
		ActiveOnly: query.ActiveOnly,
		Role:       query.Role,
		Search:     query.Search,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, pagination)
}

// Get godoc
// @Summary Get staff member
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /staff/{id} [get]
func (h *StaffHandler) Get(c *gin.Context) {
	member, err := h.staff.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, member)
}

// Points godoc
// @Summary Points history of a staff member
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /staff/{id}/points [get]
func (h *StaffHandler) Points(c *gin.Context) {
	events, err := h.points.History(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, events)
}
