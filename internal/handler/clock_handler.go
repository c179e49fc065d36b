package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/service"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
	"github.com/noah-isme/cafe-roster-api/pkg/response"
)

type clockProcessor interface {
	ClockIn(ctx context.Context, req service.ClockRequest) (*models.ClockRecord, error)
	ClockOut(ctx context.Context, req service.ClockRequest) (*models.ClockRecord, error)
	Approve(ctx context.Context, recordID, approverID string) (*models.ClockRecord, error)
	GetRecord(ctx context.Context, recordID string) (*models.ClockRecord, error)
	ListRecords(ctx context.Context, query service.ClockRecordQuery) ([]models.ClockRecord, *models.Pagination, error)
}

// ClockHandler exposes clock-in and clock-out.
type ClockHandler struct {
	service clockProcessor
}

// NewClockHandler constructs the handler.
func NewClockHandler(svc *service.ClockService) *ClockHandler {
	return &ClockHandler{service: svc}
}

// In godoc
// @Summary Clock in
// @Description Staff clock themselves in; managers may pass staff_id for someone else.
// @Tags Clock
// @Accept json
// @Produce json
// @Param payload body service.ClockRequest false "Clock payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clock/in [post]
func (h *ClockHandler) In(c *gin.Context) {
	req, err := clockRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.ClockIn(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Out godoc
// @Summary Clock out
// @Tags Clock
// @Accept json
// @Produce json
// @Param payload body service.ClockRequest false "Clock payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clock/out [post]
func (h *ClockHandler) Out(c *gin.Context) {
	req, err := clockRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.ClockOut(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Records godoc
// @Summary List clock records
// @Tags Clock
// @Produce json
// @Param staff_id query string false "Staff ID"
// @Param requires_approval query bool false "Approval filter"
// @Param open_only query bool false "Only open sessions"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /clock/records [get]
func (h *ClockHandler) Records(c *gin.Context) {
	var query service.ClockRecordQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	records, pagination, err := h.service.ListRecords(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Record godoc
// @Summary Get a clock record
// @Tags Clock
// @Produce json
// @Param id path string true "Clock record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /clock/records/{id} [get]
func (h *ClockHandler) Record(c *gin.Context) {
	record, err := h.service.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Approve godoc
// @Summary Approve a flagged clock record
// @Tags Clock
// @Produce json
// @Param id path string true "Clock record ID"
// @Success 200 {object} response.Envelope
// @Router /clock/records/{id}/approve [post]
func (h *ClockHandler) Approve(c *gin.Context) {
	record, err := h.service.Approve(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// clockRequest resolves whose clock event this is. Staff tokens may only act for their own staff id.
func clockRequest(c *gin.Context) (service.ClockRequest, error) {
	var req service.ClockRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clock payload")
		}
	}
	req.StaffID = strings.TrimSpace(req.StaffID)

	claims := claimsFromContext(c)
	if claims == nil {
		return req, appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleStaff {
		if req.StaffID != "" && req.StaffID != claims.StaffID {
			return req, appErrors.Clone(appErrors.ErrForbidden, "staff may only clock themselves")
		}
		req.StaffID = claims.StaffID
	}
	if req.StaffID == "" {
		req.StaffID = claims.StaffID
	}
	return req, nil
}
