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

type availabilityManager interface {
	List(ctx context.Context, staffID string) ([]models.AvailabilitySlot, error)
	Upsert(ctx context.Context, staffID string, input service.AvailabilityInput) ([]models.AvailabilitySlot, error)
	Bulk(ctx context.Context, staffID string, req service.BulkAvailabilityRequest) ([]models.AvailabilitySlot, error)
}

// AvailabilityHandler exposes staff availability windows.
type AvailabilityHandler struct {
	service availabilityManager
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// List godoc
// @Summary List availability windows
// @Tags Availability
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /staff/{id}/availability [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	slots, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, slots)
}

// Upsert godoc
// @Summary Set one availability window
// @Description Existing windows overlapping the new one are trimmed or split.
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Staff ID"
// @Param payload body service.AvailabilityInput true "Availability window"
// @Success 200 {object} response.Envelope
// @Router /staff/{id}/availability [post]
func (h *AvailabilityHandler) Upsert(c *gin.Context) {
	var input service.AvailabilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	slots, err := h.service.Upsert(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, slots)
}

// Bulk godoc
// @Summary Replace availability for the listed days
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Staff ID"
// @Param payload body service.BulkAvailabilityRequest true "Availability windows"
// @Success 200 {object} response.Envelope
// @Router /staff/{id}/availability [put]
func (h *AvailabilityHandler) Bulk(c *gin.Context) {
	var req service.BulkAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	slots, err := h.service.Bulk(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, slots)
}
