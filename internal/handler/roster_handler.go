package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cafe-roster-api/internal/middleware"
	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/service"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
	"github.com/noah-isme/cafe-roster-api/pkg/response"
	"github.com/noah-isme/cafe-roster-api/pkg/templates"
)

type rosterManager interface {
	Templates() []templates.Template
	Generate(ctx context.Context, req service.GenerateRosterRequest) (*service.GenerateRosterResponse, error)
	GetWeek(ctx context.Context, weekStart string) (*models.RosterWeek, error)
	Publish(ctx context.Context, weekStart string) (*models.RosterWeek, error)
}

type rosterExporter interface {
	Export(ctx context.Context, weekStart, format string) (*models.RosterExport, error)
	Download(token string) (*service.ExportFile, error)
}

type exportRequest struct {
	Format string `json:"format"`
}

// RosterHandler exposes roster generation, publishing and exports.
type RosterHandler struct {
	roster  rosterManager
	exports rosterExporter
}

// NewRosterHandler constructs the handler.
func NewRosterHandler(roster *service.RosterService, exports *service.ExportService) *RosterHandler {
	return &RosterHandler{roster: roster, exports: exports}
}

// Templates godoc
// @Summary List shift templates
// @Tags Roster
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roster/templates [get]
func (h *RosterHandler) Templates(c *gin.Context) {
	response.OK(c, h.roster.Templates())
}

// Generate godoc
// @Summary Generate a roster week
// @Description Assigns staff to the week's shift requirements. With auto_save the week replaces any unpublished draft.
// @Tags Roster
// @Accept json
// @Produce json
// @Param payload body service.GenerateRosterRequest true "Generate payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /roster/generate [post]
func (h *RosterHandler) Generate(c *gin.Context) {
	var req service.GenerateRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.roster.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "stopped_by", result.Stats.StoppedBy)
	response.OK(c, result, middleware.ExtractMeta(c))
}

// Week godoc
// @Summary Get a stored roster week
// @Tags Roster
// @Produce json
// @Param week_start path string true "Monday of the week (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /roster/weeks/{week_start} [get]
func (h *RosterHandler) Week(c *gin.Context) {
	week, err := h.roster.GetWeek(c.Request.Context(), c.Param("week_start"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, week)
}

// Publish godoc
// @Summary Publish a roster week
// @Description Published weeks are what clock-ins are scored against.
// @Tags Roster
// @Produce json
// @Param week_start path string true "Monday of the week (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /roster/weeks/{week_start}/publish [post]
func (h *RosterHandler) Publish(c *gin.Context) {
	week, err := h.roster.Publish(c.Request.Context(), c.Param("week_start"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, week)
}

// Export godoc
// @Summary Export a roster week as CSV or PDF
// @Tags Roster
// @Accept json
// @Produce json
// @Param week_start path string true "Monday of the week (YYYY-MM-DD)"
// @Param payload body exportRequest false "Export format (csv or pdf)"
// @Success 201 {object} response.Envelope
// @Router /roster/weeks/{week_start}/export [post]
func (h *RosterHandler) Export(c *gin.Context) {
	var req exportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
			return
		}
	}
	if req.Format == "" {
		req.Format = c.Query("format")
	}
	result, err := h.exports.Export(c.Request.Context(), c.Param("week_start"), req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download an exported roster
// @Tags Roster
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Router /roster/exports/download [get]
func (h *RosterHandler) Download(c *gin.Context) {
	file, err := h.exports.Download(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.File.Close()

	info, err := file.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), file.ContentType, file.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", file.Name),
	})
}
