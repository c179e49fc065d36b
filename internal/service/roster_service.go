package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/solver"
	"github.com/noah-isme/cafe-roster-api/pkg/cache"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
	"github.com/noah-isme/cafe-roster-api/pkg/templates"
)

// WeekLayout is the wire format of roster week dates.
const WeekLayout = "2006-01-02"

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type rosterShiftRepository interface {
	ListByWeek(ctx context.Context, weekStart time.Time) ([]models.RosterShift, error)
	HasPublished(ctx context.Context, exec sqlx.ExtContext, weekStart time.Time) (bool, error)
	ReplaceWeek(ctx context.Context, exec sqlx.ExtContext, weekStart time.Time, shifts []models.RosterShift) error
	Publish(ctx context.Context, weekStart time.Time) (int64, error)
}

type availabilityLister interface {
	ListForStaff(ctx context.Context, staffIDs []string) ([]models.AvailabilitySlot, error)
}

type ruleLister interface {
	List(ctx context.Context, filter models.RosterRuleFilter) ([]models.RosterRule, error)
}

// ShiftRequirementInput is one explicit shift window of a generation request.
type ShiftRequirementInput struct {
	DayOfWeek      string `json:"day_of_week" validate:"required"`
	ShiftType      string `json:"shift_type" validate:"required,max=50"`
	ScheduledStart string `json:"scheduled_start" validate:"required"`
	ScheduledEnd   string `json:"scheduled_end" validate:"required"`
	RoleRequired   string `json:"role_required" validate:"max=50"`
	MinStaff       int    `json:"min_staff" validate:"gte=0"`
	MaxStaff       int    `json:"max_staff" validate:"gte=0"`
	RequiresKeys   bool   `json:"requires_keys"`
}

// GenerateOptions tune a single generation run.
type GenerateOptions struct {
	MaxHoursPerWeek *float64 `json:"max_hours_per_week" validate:"omitempty,gt=0,lte=168"`
	PreferFairness  bool     `json:"prefer_fairness"`
}

// GenerateRosterRequest asks for a week to be rostered from a template or explicit shifts.
type GenerateRosterRequest struct {
	WeekStart    string                  `json:"week_start" validate:"required"`
	TemplateName string                  `json:"template_name"`
	Shifts       []ShiftRequirementInput `json:"shift_requirements" validate:"omitempty,dive"`
	Options      GenerateOptions         `json:"options"`
	AutoSave     bool                    `json:"auto_save"`
}

// GenerateRosterResponse is the generated week with its violations and score.
type GenerateRosterResponse struct {
	WeekStart    string               `json:"week_start"`
	Shifts       []models.RosterShift `json:"shifts"`
	Violations   []models.Violation   `json:"violations"`
	Score        float64              `json:"score"`
	Stats        solver.Stats         `json:"stats"`
	RulesApplied int                  `json:"rules_applied"`
	Saved        bool                 `json:"saved"`
}

// RosterServiceConfig carries solver limits and cache lifetimes.
type RosterServiceConfig struct {
	MaxIterations   int
	TimeBudget      time.Duration
	DefaultMaxHours float64
	CacheTTL        time.Duration
}

// RosterService generates, stores and publishes roster weeks.
type RosterService struct {
	shifts       rosterShiftRepository
	staff        activeStaffLister
	availability availabilityLister
	rules        ruleLister
	catalog      *templates.Catalog
	tx           txProvider
	cache        *CacheService
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          RosterServiceConfig
	now          func() time.Time
}

// NewRosterService wires roster generation dependencies.
func NewRosterService(
	shifts rosterShiftRepository,
	staff activeStaffLister,
	availability availabilityLister,
	rules ruleLister,
	catalog *templates.Catalog,
	tx txProvider,
	cacheSvc *CacheService,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg RosterServiceConfig,
) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		shifts:       shifts,
		staff:        staff,
		availability: availability,
		rules:        rules,
		catalog:      catalog,
		tx:           tx,
		cache:        cacheSvc,
		validator:    validate,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// ParseWeekStart parses a YYYY-MM-DD date that must fall on a Monday.
func ParseWeekStart(raw string) (time.Time, error) {
	week, err := time.Parse(WeekLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "week_start must be a YYYY-MM-DD date")
	}
	if week.Weekday() != time.Monday {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "week_start must be a Monday")
	}
	return week, nil
}

// WeekOf returns the Monday starting the roster week that contains t.
func WeekOf(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Templates lists the shift templates available for generation.
func (s *RosterService) Templates() []templates.Template {
	if s.catalog == nil {
		return []templates.Template{}
	}
	out := make([]templates.Template, 0, len(s.catalog.Templates))
	for _, name := range s.catalog.Names() {
		tpl, _ := s.catalog.Find(name)
		out = append(out, *tpl)
	}
	return out
}

// Generate rosters a week. Only active staff and rules active now take part.
// With AutoSave the unpublished shifts of the week are replaced.
func (s *RosterService) Generate(ctx context.Context, req GenerateRosterRequest) (*GenerateRosterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster generation payload")
	}
	week, err := ParseWeekStart(req.WeekStart)
	if err != nil {
		return nil, err
	}
	requirements, err := s.requirements(req, week)
	if err != nil {
		return nil, err
	}

	if req.AutoSave {
		published, err := s.shifts.HasPublished(ctx, nil, week)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roster week")
		}
		if published {
			return nil, appErrors.Clone(appErrors.ErrRosterPublished, "roster week is already published")
		}
	}

	staff, err := s.staff.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	ids := make([]string, 0, len(staff))
	names := make(map[string]string, len(staff))
	for _, member := range staff {
		ids = append(ids, member.ID)
		names[member.ID] = member.DisplayName()
	}
	availability, err := s.availability.ListForStaff(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	rules, err := s.activeRules(ctx)
	if err != nil {
		return nil, err
	}

	options := solver.Options{MaxHoursPerWeek: s.cfg.DefaultMaxHours, PreferFairness: req.Options.PreferFairness}
	if req.Options.MaxHoursPerWeek != nil {
		options.MaxHoursPerWeek = *req.Options.MaxHoursPerWeek
	}

	result, err := solver.Solve(ctx, solver.Input{
		WeekStart:    week,
		Requirements: requirements,
		Staff:        staff,
		Availability: availability,
		Rules:        rules,
		Options:      options,
		Limits:       solver.Limits{MaxIterations: s.cfg.MaxIterations, TimeBudget: s.cfg.TimeBudget},
	})
	if err != nil {
		if errors.Is(err, solver.ErrInvalidInput) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "roster generation failed")
	}
	s.metrics.ObserveSolve(result.Stats.StoppedBy, result.Stats.Duration, result.Score, result.Stats.Unfilled)
	s.logger.Info("roster generated",
		zap.String("week_start", week.Format(WeekLayout)),
		zap.Int("positions", result.Stats.Positions),
		zap.Int("unfilled", result.Stats.Unfilled),
		zap.Float64("score", result.Score),
		zap.String("stopped_by", result.Stats.StoppedBy),
	)

	violations := result.Violations
	if violations == nil {
		violations = []models.Violation{}
	}
	resp := &GenerateRosterResponse{
		WeekStart:    week.Format(WeekLayout),
		Shifts:       rosterShifts(week, result.Assignments, names),
		Violations:   violations,
		Score:        result.Score,
		Stats:        result.Stats,
		RulesApplied: len(rules),
	}
	if !req.AutoSave {
		return resp, nil
	}
	if err := s.save(ctx, week, resp.Shifts); err != nil {
		return nil, err
	}
	resp.Saved = true
	return resp, nil
}

// GetWeek returns a stored week, served from cache when possible.
func (s *RosterService) GetWeek(ctx context.Context, weekStart string) (*models.RosterWeek, error) {
	week, err := ParseWeekStart(weekStart)
	if err != nil {
		return nil, err
	}
	key := weekCacheKey(week)
	var cached models.RosterWeek
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	result, err := s.loadWeek(ctx, week)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, result, s.cfg.CacheTTL)
	return result, nil
}

// Publish makes a stored week visible to staff. Publishing twice is a no-op.
func (s *RosterService) Publish(ctx context.Context, weekStart string) (*models.RosterWeek, error) {
	week, err := ParseWeekStart(weekStart)
	if err != nil {
		return nil, err
	}
	affected, err := s.shifts.Publish(ctx, week)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish roster week")
	}
	if affected == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no roster stored for week")
	}
	s.invalidate(ctx, week)
	s.logger.Info("roster published", zap.String("week_start", week.Format(WeekLayout)), zap.Int64("shifts", affected))
	return s.loadWeek(ctx, week)
}

func (s *RosterService) loadWeek(ctx context.Context, week time.Time) (*models.RosterWeek, error) {
	shifts, err := s.shifts.ListByWeek(ctx, week)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster week")
	}
	if len(shifts) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no roster stored for week")
	}
	result := &models.RosterWeek{WeekStart: week, Shifts: shifts}
	for _, shift := range shifts {
		if shift.IsPublished {
			result.IsPublished = true
		}
		if shift.StaffID == nil {
			result.Unfilled++
		}
	}
	return result, nil
}

func (s *RosterService) save(ctx context.Context, week time.Time, shifts []models.RosterShift) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	published, err := s.shifts.HasPublished(ctx, tx, week)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roster week")
	}
	if published {
		err = appErrors.Clone(appErrors.ErrRosterPublished, "roster week is already published")
		return err
	}
	if err = s.shifts.ReplaceWeek(ctx, tx, week, shifts); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save roster week")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit roster week")
	}
	s.invalidate(ctx, week)
	return nil
}

func (s *RosterService) invalidate(ctx context.Context, week time.Time) {
	_ = s.cache.Invalidate(ctx, weekCacheKey(week))
}

func (s *RosterService) requirements(req GenerateRosterRequest, week time.Time) ([]solver.Requirement, error) {
	template := strings.TrimSpace(req.TemplateName)
	switch {
	case template != "" && len(req.Shifts) > 0:
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide either template_name or shift_requirements, not both")
	case template == "" && len(req.Shifts) == 0:
		return nil, appErrors.Clone(appErrors.ErrValidation, "template_name or shift_requirements is required")
	}

	var source []models.ShiftRequirement
	if template != "" {
		tpl, ok := s.catalog.Find(template)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown template %q", template))
		}
		expanded, err := tpl.Expand(week)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expand template")
		}
		source = expanded
	} else {
		source = make([]models.ShiftRequirement, 0, len(req.Shifts))
		for i, input := range req.Shifts {
			day, err := models.ParseDay(input.DayOfWeek)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("shift_requirements[%d]: %v", i, err))
			}
			maxStaff := input.MaxStaff
			if maxStaff == 0 {
				maxStaff = input.MinStaff
				if maxStaff < 1 {
					maxStaff = 1
				}
			}
			source = append(source, models.ShiftRequirement{
				DayOfWeek:      day,
				ShiftType:      strings.TrimSpace(input.ShiftType),
				ScheduledStart: input.ScheduledStart,
				ScheduledEnd:   input.ScheduledEnd,
				RoleRequired:   strings.TrimSpace(input.RoleRequired),
				MinStaff:       input.MinStaff,
				MaxStaff:       maxStaff,
				RequiresKeys:   input.RequiresKeys,
			})
		}
	}

	out := make([]solver.Requirement, 0, len(source))
	for i, item := range source {
		requirement, err := solver.RequirementFromModel(item)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("shift_requirements[%d]: %v", i, err))
		}
		if requirement.End <= requirement.Start {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("shift_requirements[%d]: scheduled_end must be after scheduled_start", i))
		}
		if requirement.MinStaff > requirement.MaxStaff {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("shift_requirements[%d]: min_staff exceeds max_staff", i))
		}
		out = append(out, requirement)
	}
	return out, nil
}

// activeRules loads rules active now. Rules whose payload no longer decodes are skipped.
func (s *RosterService) activeRules(ctx context.Context) ([]solver.Rule, error) {
	now := s.now().UTC()
	stored, err := s.rules.List(ctx, models.RosterRuleFilter{ActiveOnly: true, Now: now})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster rules")
	}
	rules := make([]solver.Rule, 0, len(stored))
	for _, rule := range stored {
		if !rule.ActiveAt(now) {
			continue
		}
		constraint, err := rule.Constraint()
		if err != nil {
			s.logger.Warn("skipping undecodable roster rule", zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}
		rules = append(rules, solver.Rule{ID: rule.ID, Weight: rule.Weight, Constraint: constraint})
	}
	return rules, nil
}

// rosterShifts converts assignments into shifts. Empty optional positions are dropped;
// empty required positions stay as unfilled shifts.
func rosterShifts(week time.Time, assignments []solver.Assignment, names map[string]string) []models.RosterShift {
	shifts := make([]models.RosterShift, 0, len(assignments))
	for _, a := range assignments {
		if a.StaffID == nil && !a.Required {
			continue
		}
		shift := models.RosterShift{
			StaffID:         a.StaffID,
			DayOfWeek:       a.DayOfWeek,
			ShiftType:       a.ShiftType,
			ScheduledStart:  models.FormatClock(a.Start),
			ScheduledEnd:    models.FormatClock(a.End),
			RoleRequired:    a.Role,
			RequiresKeys:    a.RequiresKeys && a.Lead,
			RosterWeekStart: week,
		}
		if a.StaffID != nil {
			if name, ok := names[*a.StaffID]; ok {
				display := name
				shift.StaffName = &display
			}
		}
		shifts = append(shifts, shift)
	}
	return shifts
}

func weekCacheKey(week time.Time) string {
	return cache.Key("roster-week", week.Format(WeekLayout))
}
