package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
	"github.com/noah-isme/cafe-roster-api/pkg/templates"
)

type shiftRepoStub struct {
	stored     []models.RosterShift
	published  bool
	listCalls  int
	replaced   int
	publishHit int64
}

func (s *shiftRepoStub) ListByWeek(ctx context.Context, weekStart time.Time) ([]models.RosterShift, error) {
	s.listCalls++
	out := make([]models.RosterShift, len(s.stored))
	copy(out, s.stored)
	return out, nil
}

func (s *shiftRepoStub) HasPublished(ctx context.Context, exec sqlx.ExtContext, weekStart time.Time) (bool, error) {
	return s.published, nil
}

func (s *shiftRepoStub) ReplaceWeek(ctx context.Context, exec sqlx.ExtContext, weekStart time.Time, shifts []models.RosterShift) error {
	s.replaced++
	s.stored = append([]models.RosterShift(nil), shifts...)
	return nil
}

func (s *shiftRepoStub) Publish(ctx context.Context, weekStart time.Time) (int64, error) {
	if len(s.stored) == 0 {
		return 0, nil
	}
	for i := range s.stored {
		s.stored[i].IsPublished = true
	}
	s.published = true
	return int64(len(s.stored)), nil
}

type availabilityStub struct {
	rows []models.AvailabilitySlot
}

func (a *availabilityStub) ListForStaff(ctx context.Context, staffIDs []string) ([]models.AvailabilitySlot, error) {
	return a.rows, nil
}

type ruleListerStub struct {
	rules []models.RosterRule
}

func (r *ruleListerStub) List(ctx context.Context, filter models.RosterRuleFilter) ([]models.RosterRule, error) {
	return r.rules, nil
}

func openAllWeek(ids ...string) []models.AvailabilitySlot {
	var rows []models.AvailabilitySlot
	for _, id := range ids {
		for day := 0; day < 7; day++ {
			rows = append(rows, models.AvailabilitySlot{StaffID: id, DayOfWeek: day, HourStart: 0, HourEnd: 26, Status: models.AvailabilityAvailable})
		}
	}
	return rows
}

const tinyCatalog = `
templates:
  - name: tiny
    shifts:
      - days: [monday, tuesday]
        shift_type: opening
        start: "08:00"
        end: "12:00"
        min_staff: 1
        max_staff: 1
        requires_keys: true
`

type rosterFixture struct {
	service *RosterService
	shifts  *shiftRepoStub
	rules   *ruleListerStub
	cache   *memoryCacheRepo
}

func newRosterFixture(t *testing.T, tx txProvider) rosterFixture {
	t.Helper()
	catalog, err := templates.Parse([]byte(tinyCatalog))
	require.NoError(t, err)

	staff := &staffStub{items: []models.Staff{
		staffMember("a", "Ana", true, "barista"),
		staffMember("b", "Budi", false, "barista"),
	}}
	shifts := &shiftRepoStub{}
	rules := &ruleListerStub{}
	cacheRepo := newMemoryCacheRepo()
	cacheSvc := NewCacheService("roster", cacheRepo, nil, time.Minute, zap.NewNop(), true)

	svc := NewRosterService(shifts, staff, &availabilityStub{rows: openAllWeek("a", "b")}, rules, catalog, tx, cacheSvc,
		validator.New(), nil, zap.NewNop(), RosterServiceConfig{MaxIterations: 200, TimeBudget: time.Second, DefaultMaxHours: 40})
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return rosterFixture{service: svc, shifts: shifts, rules: rules, cache: cacheRepo}
}

func TestRosterServiceGenerateExplicitShifts(t *testing.T) {
	fx := newRosterFixture(t, nil)

	resp, err := fx.service.Generate(context.Background(), GenerateRosterRequest{
		WeekStart: "2025-03-03",
		Shifts: []ShiftRequirementInput{
			{DayOfWeek: "Monday", ShiftType: "opening", ScheduledStart: "08:00", ScheduledEnd: "12:00", RoleRequired: "barista", MinStaff: 1, MaxStaff: 1, RequiresKeys: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Shifts, 1)
	shift := resp.Shifts[0]
	require.NotNil(t, shift.StaffID)
	assert.Equal(t, "a", *shift.StaffID)
	require.NotNil(t, shift.StaffName)
	assert.Equal(t, "Ana", *shift.StaffName)
	assert.True(t, shift.RequiresKeys)
	assert.Equal(t, "2025-03-03", resp.WeekStart)
	assert.Empty(t, resp.Violations)
	assert.False(t, resp.Saved)
	assert.Zero(t, fx.shifts.replaced)
}

func TestRosterServiceGenerateReportsUnfilledShift(t *testing.T) {
	fx := newRosterFixture(t, nil)

	resp, err := fx.service.Generate(context.Background(), GenerateRosterRequest{
		WeekStart: "2025-03-03",
		Shifts: []ShiftRequirementInput{
			{DayOfWeek: "wednesday", ShiftType: "kitchen", ScheduledStart: "10:00", ScheduledEnd: "14:00", RoleRequired: "chef", MinStaff: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Shifts, 1)
	assert.Nil(t, resp.Shifts[0].StaffID)
	require.NotEmpty(t, resp.Violations)
	assert.Equal(t, models.ViolationUnfilledShift, resp.Violations[0].Kind)
	assert.Equal(t, 1, resp.Stats.Unfilled)
}

func TestRosterServiceGenerateTemplateAppliesRulesAndSaves(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newRosterFixture(t, tx)
	fx.rules.rules = []models.RosterRule{{
		ID:               "rule-1",
		ConstraintType:   models.ConstraintDayOff,
		ParsedConstraint: types.JSONText(`{"type":"day_off","parameters":{"staff_id":"a","day_of_week":"tuesday"}}`),
		Weight:           100,
		IsActive:         true,
	}}
	week, err := ParseWeekStart("2025-03-03")
	require.NoError(t, err)
	fx.cache.items[weekCacheKey(week)] = []byte(`{}`)

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := fx.service.Generate(context.Background(), GenerateRosterRequest{
		WeekStart:    "2025-03-03",
		TemplateName: "TINY",
		AutoSave:     true,
	})
	require.NoError(t, err)
	assert.True(t, resp.Saved)
	assert.Equal(t, 1, resp.RulesApplied)
	require.Len(t, resp.Shifts, 2)

	for _, shift := range resp.Shifts {
		if shift.DayOfWeek == 1 {
			// only a holds keys, and a is off on tuesday
			assert.Nil(t, shift.StaffID)
		}
		if shift.DayOfWeek == 0 {
			require.NotNil(t, shift.StaffID)
			assert.Equal(t, "a", *shift.StaffID)
		}
	}
	assert.Equal(t, 1, fx.shifts.replaced)
	assert.Len(t, fx.shifts.stored, 2)
	assert.Contains(t, fx.cache.deleted, weekCacheKey(week))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterServiceGenerateSkipsExpiredRules(t *testing.T) {
	fx := newRosterFixture(t, nil)
	expired := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	fx.rules.rules = []models.RosterRule{
		{ID: "expired", ConstraintType: models.ConstraintDayOff, ParsedConstraint: types.JSONText(`{"type":"day_off","parameters":{"staff_id":"a","day_of_week":"monday"}}`), Weight: 100, IsActive: true, ExpiresAt: &expired},
		{ID: "broken", ConstraintType: models.ConstraintMaxHours, ParsedConstraint: types.JSONText(`{"type":"max_hours","parameters":"oops"}`), Weight: 50, IsActive: true},
	}

	resp, err := fx.service.Generate(context.Background(), GenerateRosterRequest{WeekStart: "2025-03-03", TemplateName: "tiny"})
	require.NoError(t, err)
	assert.Zero(t, resp.RulesApplied)
}

func TestRosterServiceGenerateRejectsPublishedWeek(t *testing.T) {
	fx := newRosterFixture(t, nil)
	fx.shifts.published = true

	_, err := fx.service.Generate(context.Background(), GenerateRosterRequest{WeekStart: "2025-03-03", TemplateName: "tiny", AutoSave: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRosterPublished.Code, appErrors.FromError(err).Code)
	assert.Zero(t, fx.shifts.replaced)
}

func TestRosterServiceGenerateValidation(t *testing.T) {
	fx := newRosterFixture(t, nil)
	shift := ShiftRequirementInput{DayOfWeek: "monday", ShiftType: "opening", ScheduledStart: "08:00", ScheduledEnd: "12:00", MinStaff: 1, MaxStaff: 1}

	cases := map[string]GenerateRosterRequest{
		"not a monday":       {WeekStart: "2025-03-04", TemplateName: "tiny"},
		"bad date":           {WeekStart: "03/03/2025", TemplateName: "tiny"},
		"neither source":     {WeekStart: "2025-03-03"},
		"both sources":       {WeekStart: "2025-03-03", TemplateName: "tiny", Shifts: []ShiftRequirementInput{shift}},
		"unknown template":   {WeekStart: "2025-03-03", TemplateName: "brunch"},
		"unknown day":        {WeekStart: "2025-03-03", Shifts: []ShiftRequirementInput{{DayOfWeek: "someday", ShiftType: "x", ScheduledStart: "08:00", ScheduledEnd: "09:00", MaxStaff: 1}}},
		"end before start":   {WeekStart: "2025-03-03", Shifts: []ShiftRequirementInput{{DayOfWeek: "monday", ShiftType: "x", ScheduledStart: "12:00", ScheduledEnd: "08:00", MaxStaff: 1}}},
		"past trading day":   {WeekStart: "2025-03-03", Shifts: []ShiftRequirementInput{{DayOfWeek: "monday", ShiftType: "x", ScheduledStart: "22:00", ScheduledEnd: "27:00", MaxStaff: 1}}},
		"min above max":      {WeekStart: "2025-03-03", Shifts: []ShiftRequirementInput{{DayOfWeek: "monday", ShiftType: "x", ScheduledStart: "08:00", ScheduledEnd: "12:00", MinStaff: 3, MaxStaff: 2}}},
		"negative max hours": {WeekStart: "2025-03-03", TemplateName: "tiny", Options: GenerateOptions{MaxHoursPerWeek: floatPtr(-1)}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fx.service.Generate(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestRosterServiceGetWeekUsesCache(t *testing.T) {
	fx := newRosterFixture(t, nil)
	fx.shifts.stored = []models.RosterShift{
		{ID: "s1", StaffID: strPtr("a"), DayOfWeek: 0, ShiftType: "opening", ScheduledStart: "08:00", ScheduledEnd: "12:00"},
		{ID: "s2", DayOfWeek: 1, ShiftType: "opening", ScheduledStart: "08:00", ScheduledEnd: "12:00"},
	}

	first, err := fx.service.GetWeek(context.Background(), "2025-03-03")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Unfilled)
	assert.False(t, first.IsPublished)

	second, err := fx.service.GetWeek(context.Background(), "2025-03-03")
	require.NoError(t, err)
	assert.Len(t, second.Shifts, 2)
	assert.Equal(t, 1, fx.shifts.listCalls)
}

func TestRosterServiceGetWeekMissing(t *testing.T) {
	fx := newRosterFixture(t, nil)

	_, err := fx.service.GetWeek(context.Background(), "2025-03-03")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRosterServicePublish(t *testing.T) {
	fx := newRosterFixture(t, nil)

	_, err := fx.service.Publish(context.Background(), "2025-03-03")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	fx.shifts.stored = []models.RosterShift{{ID: "s1", StaffID: strPtr("a"), DayOfWeek: 0, ShiftType: "opening", ScheduledStart: "08:00", ScheduledEnd: "12:00"}}
	week, err := fx.service.Publish(context.Background(), "2025-03-03")
	require.NoError(t, err)
	assert.True(t, week.IsPublished)
	assert.Len(t, fx.cache.deleted, 1)
}

func TestRosterServiceTemplatesSorted(t *testing.T) {
	fx := newRosterFixture(t, nil)
	list := fx.service.Templates()
	require.Len(t, list, 1)
	assert.Equal(t, "tiny", list[0].Name)
}

func TestWeekOf(t *testing.T) {
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), WeekOf(time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), WeekOf(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
}

func floatPtr(v float64) *float64 {
	return &v
}
