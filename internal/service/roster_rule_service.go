package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/ruleparser"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
)

type rosterRuleRepository interface {
	Create(ctx context.Context, rule *models.RosterRule) error
	List(ctx context.Context, filter models.RosterRuleFilter) ([]models.RosterRule, error)
	FindByID(ctx context.Context, id string) (*models.RosterRule, error)
	Update(ctx context.Context, id string, update models.RosterRuleUpdate) (*models.RosterRule, error)
	Delete(ctx context.Context, id string) error
}

type activeStaffLister interface {
	ListActive(ctx context.Context) ([]models.Staff, error)
}

// ParseRuleRequest asks for a free-text rule to be parsed and optionally stored.
type ParseRuleRequest struct {
	RuleText  string     `json:"rule_text" validate:"required,max=1000"`
	Priority  string     `json:"priority" validate:"omitempty,oneof=critical high medium low"`
	AutoSave  bool       `json:"auto_save"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// ParseRuleResponse is a successful parse with its description and, when saved, the stored rule.
type ParseRuleResponse struct {
	Result      *ruleparser.ParseResult     `json:"result"`
	Description string                      `json:"description"`
	Validation  ruleparser.ValidationResult `json:"validation"`
	Weight      int                         `json:"weight"`
	Rule        *models.RosterRule          `json:"rule,omitempty"`
}

// CreateRuleRequest stores an already structured constraint.
type CreateRuleRequest struct {
	RuleText         string                    `json:"rule_text" validate:"required,max=1000"`
	ParsedConstraint models.ConstraintEnvelope `json:"parsed_constraint"`
	Weight           *int                      `json:"weight" validate:"omitempty,gte=0,lte=100"`
	Priority         string                    `json:"priority" validate:"omitempty,oneof=critical high medium low"`
	IsActive         *bool                     `json:"is_active"`
	ExpiresAt        *time.Time                `json:"expires_at"`
}

// UpdateRuleRequest carries the only mutable rule fields.
type UpdateRuleRequest struct {
	Weight      *int       `json:"weight" validate:"omitempty,gte=0,lte=100"`
	IsActive    *bool      `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

// ListRulesQuery filters rule listings.
type ListRulesQuery struct {
	ActiveOnly     bool   `form:"active_only"`
	ConstraintType string `form:"constraint_type"`
}

// RosterRuleService parses, validates and stores roster rules.
type RosterRuleService struct {
	repo      rosterRuleRepository
	staff     activeStaffLister
	parser    ruleparser.Parser
	backend   string
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewRosterRuleService constructs the service. backend labels parse metrics.
func NewRosterRuleService(repo rosterRuleRepository, staff activeStaffLister, parser ruleparser.Parser, backend string, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *RosterRuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterRuleService{
		repo:      repo,
		staff:     staff,
		parser:    parser,
		backend:   backend,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Parse turns free text into a validated constraint. Failed parses and invalid
// constraints are never stored, even with AutoSave.
func (s *RosterRuleService) Parse(ctx context.Context, req ParseRuleRequest, createdBy string) (*ParseRuleResponse, error) {
	req.RuleText = strings.TrimSpace(req.RuleText)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid parse payload")
	}

	staffNames, err := s.staffContext(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.parser.Parse(ctx, req.RuleText, staffNames)
	if err != nil {
		s.metrics.RecordRuleParse(s.backend, false)
		s.logger.Warn("rule parser unavailable", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "rule parser unavailable")
	}
	if result == nil || !result.Success || result.Constraint == nil {
		s.metrics.RecordRuleParse(s.backend, false)
		if result == nil {
			result = ruleparser.Failed("rule parser returned no result")
		}
		if result.Success {
			result = ruleparser.Failed("rule parser returned no constraint")
		}
		return nil, appErrors.WithDetails(appErrors.ErrRuleParseFailed, result.Error, result)
	}
	s.metrics.RecordRuleParse(s.backend, true)

	validation := ruleparser.Validate(result.Constraint)
	if !validation.IsValid {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "parsed constraint is invalid", validation)
	}

	resp := &ParseRuleResponse{
		Result:      result,
		Description: ruleparser.Describe(result.Constraint, staffNames),
		Validation:  validation,
		Weight:      models.ResolveWeight(req.Priority, result.SuggestedWeight),
	}
	if !req.AutoSave {
		return resp, nil
	}

	rule, err := s.store(ctx, req.RuleText, result.Constraint, resp.Weight, true, req.ExpiresAt, createdBy)
	if err != nil {
		return nil, err
	}
	rule.Description = resp.Description
	resp.Rule = rule
	return resp, nil
}

// Create validates and stores a structured constraint.
func (s *RosterRuleService) Create(ctx context.Context, req CreateRuleRequest, createdBy string) (*models.RosterRule, error) {
	req.RuleText = strings.TrimSpace(req.RuleText)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule payload")
	}
	constraint, validation := ruleparser.ValidateEnvelope(req.ParsedConstraint)
	if !validation.IsValid {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid constraint", validation)
	}

	weight := models.ResolveWeight(req.Priority, req.Weight)
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	rule, err := s.store(ctx, req.RuleText, constraint, weight, active, req.ExpiresAt, createdBy)
	if err != nil {
		return nil, err
	}
	if err := s.describe(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Get returns one rule with its rendered description.
func (s *RosterRuleService) Get(ctx context.Context, id string) (*models.RosterRule, error) {
	rule, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.describe(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// List returns rules ordered by weight then recency.
func (s *RosterRuleService) List(ctx context.Context, query ListRulesQuery) ([]models.RosterRule, error) {
	filter := models.RosterRuleFilter{ActiveOnly: query.ActiveOnly, Now: s.now().UTC()}
	if query.ConstraintType != "" {
		ct := models.ConstraintType(strings.ToLower(strings.TrimSpace(query.ConstraintType)))
		if _, ok := models.NewConstraint(ct); !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown constraint_type")
		}
		filter.ConstraintType = ct
	}
	rules, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rules")
	}
	if rules == nil {
		rules = []models.RosterRule{}
	}
	described := make([]*models.RosterRule, len(rules))
	for i := range rules {
		described[i] = &rules[i]
	}
	if err := s.describe(ctx, described...); err != nil {
		return nil, err
	}
	return rules, nil
}

// Update changes weight, activity or expiry. Every other field is ignored. An
// update naming none of them returns the stored rule untouched.
func (s *RosterRuleService) Update(ctx context.Context, id string, req UpdateRuleRequest) (*models.RosterRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule update")
	}
	update := models.RosterRuleUpdate{
		Weight:      req.Weight,
		IsActive:    req.IsActive,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	}
	if update.Empty() {
		return s.Get(ctx, id)
	}

	rule, err := s.repo.Update(ctx, id, update)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rule")
	}
	s.logger.Info("roster rule updated", zap.String("rule_id", id))
	if err := s.describe(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Delete removes a rule.
func (s *RosterRuleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete rule")
	}
	s.logger.Info("roster rule deleted", zap.String("rule_id", id))
	return nil
}

func (s *RosterRuleService) find(ctx context.Context, id string) (*models.RosterRule, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rule")
	}
	return rule, nil
}

// describe fills each rule's description from its stored constraint. A
// payload that no longer decodes leaves the description empty.
func (s *RosterRuleService) describe(ctx context.Context, rules ...*models.RosterRule) error {
	if len(rules) == 0 {
		return nil
	}
	names, err := s.staffContext(ctx)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		c, err := rule.Constraint()
		if err != nil {
			s.logger.Warn("stored rule constraint does not decode", zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}
		rule.Description = ruleparser.Describe(c, names)
	}
	return nil
}

func (s *RosterRuleService) store(ctx context.Context, text string, c models.Constraint, weight int, active bool, expiresAt *time.Time, createdBy string) (*models.RosterRule, error) {
	env, err := models.EncodeConstraint(c)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode constraint")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode constraint")
	}

	rule := &models.RosterRule{
		RuleText:         text,
		ConstraintType:   c.Type(),
		ParsedConstraint: payload,
		Weight:           weight,
		IsActive:         active,
		ExpiresAt:        expiresAt,
	}
	if createdBy != "" {
		rule.CreatedBy = &createdBy
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store rule")
	}
	s.logger.Info("roster rule stored",
		zap.String("rule_id", rule.ID),
		zap.String("constraint_type", string(rule.ConstraintType)),
		zap.Int("weight", rule.Weight))
	return rule, nil
}

func (s *RosterRuleService) staffContext(ctx context.Context) (map[string]string, error) {
	names := map[string]string{}
	if s.staff == nil {
		return names, nil
	}
	staff, err := s.staff.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	for _, member := range staff {
		names[member.ID] = member.DisplayName()
	}
	return names, nil
}
