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

type rosterRuleManager interface {
	Parse(ctx context.Context, req service.ParseRuleRequest, createdBy string) (*service.ParseRuleResponse, error)
	Create(ctx context.Context, req service.CreateRuleRequest, createdBy string) (*models.RosterRule, error)
	List(ctx context.Context, query service.ListRulesQuery) ([]models.RosterRule, error)
	Get(ctx context.Context, id string) (*models.RosterRule, error)
	Update(ctx context.Context, id string, req service.UpdateRuleRequest) (*models.RosterRule, error)
	Delete(ctx context.Context, id string) error
}

// RosterRuleHandler exposes free-text rule parsing and the rule store.
type RosterRuleHandler struct {
	service rosterRuleManager
}

// NewRosterRuleHandler constructs the handler.
func NewRosterRuleHandler(svc *service.RosterRuleService) *RosterRuleHandler {
	return &RosterRuleHandler{service: svc}
}

// Parse godoc
// @Summary Parse a free-text roster rule
// @Description Returns the structured constraint. With auto_save the rule is stored when it parses and validates.
// @Tags Rules
// @Accept json
// @Produce json
// @Param payload body service.ParseRuleRequest true "Rule text"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /roster/rules/parse [post]
func (h *RosterRuleHandler) Parse(c *gin.Context) {
	var req service.ParseRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid parse payload"))
		return
	}
	result, err := h.service.Parse(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Rule != nil {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// Create godoc
// @Summary Store a structured roster rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param payload body service.CreateRuleRequest true "Rule"
// @Success 201 {object} response.Envelope
// @Router /roster/rules [post]
func (h *RosterRuleHandler) Create(c *gin.Context) {
	var req service.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// List godoc
// @Summary List roster rules
// @Tags Rules
// @Produce json
// @Param active_only query bool false "Only active, unexpired rules"
// @Param constraint_type query string false "Constraint type"
// @Success 200 {object} response.Envelope
// @Router /roster/rules [get]
func (h *RosterRuleHandler) List(c *gin.Context) {
	var query service.ListRulesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	rules, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rules)
}

// Get godoc
// @Summary Get a roster rule with its description
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /roster/rules/{id} [get]
func (h *RosterRuleHandler) Get(c *gin.Context) {
	rule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rule)
}

// Update godoc
// @Summary Update weight, activity or expiry of a rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param payload body service.UpdateRuleRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /roster/rules/{id} [patch]
func (h *RosterRuleHandler) Update(c *gin.Context) {
	var req service.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rule)
}

// Delete godoc
// @Summary Delete a roster rule
// @Tags Rules
// @Param id path string true "Rule ID"
// @Success 204
// @Router /roster/rules/{id} [delete]
func (h *RosterRuleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
