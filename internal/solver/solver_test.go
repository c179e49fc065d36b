package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

func member(id string, keyHolder bool, roles ...string) models.Staff {
	return models.Staff{ID: id, Name: id, KeyHolder: keyHolder, Roles: roles, Active: true}
}

func allWeek(staffID string, status models.AvailabilityStatus) []models.AvailabilitySlot {
	rows := make([]models.AvailabilitySlot, 0, 7)
	for day := 0; day < 7; day++ {
		rows = append(rows, models.AvailabilitySlot{StaffID: staffID, DayOfWeek: day, HourStart: 0, HourEnd: 26, Status: status})
	}
	return rows
}

func shift(day int, kind string, start, end string, minStaff, maxStaff int) Requirement {
	s, _ := models.ParseClock(start)
	e, _ := models.ParseClock(end)
	return Requirement{DayOfWeek: day, ShiftType: kind, Start: s, End: e, MinStaff: minStaff, MaxStaff: maxStaff}
}

func hoursByStaff(res *Result) map[string]float64 {
	out := map[string]float64{}
	for _, a := range res.Assignments {
		if a.StaffID != nil {
			out[*a.StaffID] += a.Hours()
		}
	}
	return out
}

func staffOn(res *Result, day int, kind string) []string {
	var ids []string
	for _, a := range res.Assignments {
		if a.DayOfWeek == day && a.ShiftType == kind && a.StaffID != nil {
			ids = append(ids, *a.StaffID)
		}
	}
	return ids
}

func weekTemplate() []Requirement {
	var reqs []Requirement
	for day := 0; day < 7; day++ {
		reqs = append(reqs,
			shift(day, "opening", "08:00", "12:00", 1, 1),
			shift(day, "midday", "12:00", "16:00", 1, 1),
			shift(day, "evening", "16:00", "20:00", 1, 1),
			shift(day, "closing", "20:00", "24:00", 1, 1),
		)
	}
	return reqs
}

func sixStaffInput() Input {
	in := Input{
		WeekStart:    time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Requirements: weekTemplate(),
	}
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		in.Staff = append(in.Staff, member(id, true))
		in.Availability = append(in.Availability, allWeek(id, models.AvailabilityAvailable)...)
	}
	in.Rules = []Rule{{ID: "r-max", Weight: 100, Constraint: models.MaxHours{StaffID: "s3", MaxHoursPerWeek: 20}}}
	return in
}

func TestSolveWeekRespectsMaxHours(t *testing.T) {
	res, err := Solve(context.Background(), sixStaffInput())
	require.NoError(t, err)

	require.Len(t, res.Assignments, 28)
	assert.Equal(t, 0, res.Stats.Unfilled)
	assert.LessOrEqual(t, hoursByStaff(res)["s3"], 20.0)
	for _, a := range res.Assignments {
		assert.NotNil(t, a.StaffID)
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	first, err := Solve(context.Background(), sixStaffInput())
	require.NoError(t, err)
	second, err := Solve(context.Background(), sixStaffInput())
	require.NoError(t, err)

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Score, second.Score)
}

func TestSolveIterationCapIsReproducible(t *testing.T) {
	in := sixStaffInput()
	in.Limits = Limits{MaxIterations: 3, TimeBudget: time.Minute}

	first, err := Solve(context.Background(), in)
	require.NoError(t, err)
	second, err := Solve(context.Background(), in)
	require.NoError(t, err)

	assert.Contains(t, []string{StopConverged, StopMaxIterations}, first.Stats.StoppedBy)
	assert.LessOrEqual(t, first.Stats.Iterations, 3)
	assert.Equal(t, first.Stats.StoppedBy, second.Stats.StoppedBy)
	assert.Equal(t, first.Stats.Iterations, second.Stats.Iterations)
	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Score, second.Score)
}

func TestSolveNeverDoubleBooks(t *testing.T) {
	in := sixStaffInput()
	in.Requirements = append(in.Requirements, shift(0, "event", "10:00", "14:00", 2, 2))
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)

	type window struct{ start, end int }
	seen := map[string][]window{}
	for _, a := range res.Assignments {
		if a.StaffID == nil {
			continue
		}
		w := window{a.DayOfWeek*1440 + a.Start, a.DayOfWeek*1440 + a.End}
		for _, other := range seen[*a.StaffID] {
			assert.False(t, w.start < other.end && other.start < w.end, "staff %s double booked", *a.StaffID)
		}
		seen[*a.StaffID] = append(seen[*a.StaffID], w)
	}
}

func TestSolveHonoursDayOff(t *testing.T) {
	in := sixStaffInput()
	in.Rules = append(in.Rules, Rule{ID: "r-off", Weight: 50, Constraint: models.DayOff{StaffID: "s1", DayOfWeek: "monday"}})
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)

	for _, a := range res.Assignments {
		if a.DayOfWeek == 0 && a.StaffID != nil {
			assert.NotEqual(t, "s1", *a.StaffID)
		}
	}
}

func TestSolveUnavailableProducesUnfilledShift(t *testing.T) {
	in := Input{
		Requirements: []Requirement{shift(2, "closing", "18:00", "23:00", 1, 1)},
		Staff:        []models.Staff{member("s1", true)},
		Availability: []models.AvailabilitySlot{
			{StaffID: "s1", DayOfWeek: 2, HourStart: 0, HourEnd: 26, Status: models.AvailabilityAvailable},
			{StaffID: "s1", DayOfWeek: 2, HourStart: 20, HourEnd: 22, Status: models.AvailabilityUnavailable},
		},
	}
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.Assignments, 1)
	assert.Nil(t, res.Assignments[0].StaffID)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, models.ViolationUnfilledShift, res.Violations[0].Kind)
	assert.Equal(t, 2, *res.Violations[0].DayOfWeek)
	assert.Equal(t, UnfilledPenalty, res.Score)
}

func TestSolveTieBreakFewerHoursThenStaffID(t *testing.T) {
	in := Input{
		Requirements: []Requirement{
			shift(1, "opening", "08:00", "12:00", 1, 1),
			shift(0, "opening", "08:00", "12:00", 1, 1),
		},
		Staff:        []models.Staff{member("b", true), member("a", true)},
		Availability: append(allWeek("a", models.AvailabilityAvailable), allWeek("b", models.AvailabilityAvailable)...),
	}
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, staffOn(res, 0, "opening"))
	assert.Equal(t, []string{"b"}, staffOn(res, 1, "opening"))
}

func TestSolveOpeningNeedsKeyHolder(t *testing.T) {
	in := Input{
		Requirements: []Requirement{shift(4, "opening", "07:00", "11:00", 1, 1)},
		Staff:        []models.Staff{member("a", false), member("b", true)},
		Availability: append(allWeek("a", models.AvailabilityAvailable), allWeek("b", models.AvailabilityAvailable)...),
		Rules:        []Rule{{ID: "r-keys", Weight: 100, Constraint: models.RequiresKeysForOpening{}}},
	}
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, staffOn(res, 4, "opening"))

	in.Rules = nil
	in.Requirements[0].RequiresKeys = true
	res, err = Solve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, staffOn(res, 4, "opening"))
}

func TestSolveRoleFilter(t *testing.T) {
	req := shift(5, "games", "12:00", "18:00", 1, 1)
	req.Role = "game_master"
	in := Input{
		Requirements: []Requirement{req},
		Staff:        []models.Staff{member("a", false, "barista"), member("b", false, "game_master")},
		Availability: append(allWeek("a", models.AvailabilityAvailable), allWeek("b", models.AvailabilityAvailable)...),
	}
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, staffOn(res, 5, "games"))
}

func TestSolvePreferredHoursPullsShifts(t *testing.T) {
	in := Input{
		Requirements: []Requirement{
			shift(0, "opening", "08:00", "12:00", 1, 1),
			shift(1, "opening", "08:00", "12:00", 1, 1),
			shift(2, "opening", "08:00", "12:00", 1, 1),
		},
		Staff:        []models.Staff{member("a", true), member("b", true)},
		Availability: append(allWeek("a", models.AvailabilityAvailable), allWeek("b", models.AvailabilityAvailable)...),
		Rules:        []Rule{{ID: "r-pref", Weight: 100, Constraint: models.PreferredHours{StaffID: "b", PreferredHoursPerWeek: 12}}},
	}
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 12.0, hoursByStaff(res)["b"])
	assert.Empty(t, res.Violations)
}

func TestSolvePreferredNotIsSoft(t *testing.T) {
	in := Input{
		Requirements: []Requirement{shift(3, "evening", "16:00", "20:00", 1, 1)},
		Staff:        []models.Staff{member("a", true)},
		Availability: allWeek("a", models.AvailabilityPreferredNot),
	}
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, staffOn(res, 3, "evening"))
	require.Len(t, res.Violations, 1)
	assert.Equal(t, models.ViolationPreferredNot, res.Violations[0].Kind)
	assert.Equal(t, 4*PreferredNotPenaltyPerHour, res.Violations[0].Penalty)
}

func TestSolveOptionalPositions(t *testing.T) {
	in := Input{
		Requirements: []Requirement{shift(5, "peak", "17:00", "22:00", 1, 2)},
		Staff:        []models.Staff{member("a", true), member("b", true)},
		Availability: append(allWeek("a", models.AvailabilityAvailable), allWeek("b", models.AvailabilityAvailable)...),
	}
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, staffOn(res, 5, "peak"))
	assert.Equal(t, -OptionalFillReward, res.Score)

	in.Staff = in.Staff[:1]
	res, err = Solve(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, res.Assignments, 1)
	assert.Empty(t, res.Violations)
}

func TestSolveReportsShortRest(t *testing.T) {
	in := Input{
		Requirements: []Requirement{
			shift(0, "closing", "18:00", "26:00", 1, 1),
			shift(1, "opening", "07:00", "11:00", 1, 1),
		},
		Staff:        []models.Staff{member("a", true)},
		Availability: allWeek("a", models.AvailabilityAvailable),
		Rules:        []Rule{{ID: "r-rest", Weight: 50, Constraint: models.NoBackToBack{}}},
	}
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Stats.Unfilled)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, string(models.ConstraintNoBackToBack), res.Violations[0].Kind)
	assert.Equal(t, "r-rest", *res.Violations[0].RuleID)
	assert.InDelta(t, 0.5, res.Violations[0].Penalty, 1e-9)
}

func TestSolveFairnessSpreadsHours(t *testing.T) {
	in := Input{
		Requirements: []Requirement{
			shift(0, "opening", "08:00", "16:00", 1, 1),
			shift(1, "opening", "08:00", "16:00", 1, 1),
		},
		Staff:        []models.Staff{member("a", true), member("b", true)},
		Availability: append(allWeek("a", models.AvailabilityAvailable), allWeek("b", models.AvailabilityAvailable)...),
		Rules: []Rule{
			{ID: "r-pref", Weight: 25, Constraint: models.PreferredHours{StaffID: "a", PreferredHoursPerWeek: 16}},
			{ID: "r-fair", Weight: 100, Constraint: models.Fairness{MaxHourSpread: 4}},
		},
	}
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)

	hours := hoursByStaff(res)
	assert.Equal(t, 8.0, hours["a"])
	assert.Equal(t, 8.0, hours["b"])
}

func TestSolveStillReturnsRosterWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Solve(ctx, sixStaffInput())
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, res.Stats.StoppedBy)
	assert.Len(t, res.Assignments, 28)
}

func TestSolveRejectsMalformedRequirement(t *testing.T) {
	_, err := Solve(context.Background(), Input{Requirements: []Requirement{shift(0, "x", "12:00", "10:00", 1, 1)}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Solve(context.Background(), Input{Requirements: []Requirement{shift(0, "x", "10:00", "12:00", 2, 1)}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEveryConstraintKindHasScope(t *testing.T) {
	for _, kind := range models.ConstraintTypes {
		c, ok := models.NewConstraint(kind)
		require.True(t, ok)
		assert.NotEqual(t, scopeUnknown, scopeOf(models.Deref(c)), kind)
	}
}

func TestExcessConsecutiveDays(t *testing.T) {
	days := [7]bool{true, true, true, true, false, true, true}
	assert.Equal(t, 1, excessConsecutiveDays(days, 3))
	assert.Equal(t, 0, excessConsecutiveDays(days, 4))
	assert.Equal(t, 5, excessConsecutiveDays([7]bool{true, true, true, true, true, true, true}, 2))
}

func TestRequirementFromModel(t *testing.T) {
	req, err := RequirementFromModel(models.ShiftRequirement{DayOfWeek: 4, ShiftType: "closing", ScheduledStart: "18:00", ScheduledEnd: "25:30", MinStaff: 1, MaxStaff: 2})
	require.NoError(t, err)
	assert.Equal(t, 18*60, req.Start)
	assert.Equal(t, 25*60+30, req.End)

	_, err = RequirementFromModel(models.ShiftRequirement{ScheduledStart: "6pm", ScheduledEnd: "22:00"})
	assert.Error(t, err)
}

func TestSolvePreferFairnessReportsResidual(t *testing.T) {
	in := Input{
		Requirements: []Requirement{
			shift(0, "opening", "08:00", "12:00", 1, 1),
			shift(1, "opening", "08:00", "12:00", 1, 1),
			shift(2, "opening", "08:00", "12:00", 1, 1),
		},
		Staff:        []models.Staff{member("a", true), member("b", true)},
		Availability: append(allWeek("a", models.AvailabilityAvailable), allWeek("b", models.AvailabilityAvailable)...),
		Options:      Options{PreferFairness: true},
	}
	res, err := Solve(context.Background(), in)
	require.NoError(t, err)

	hours := hoursByStaff(res)
	assert.ElementsMatch(t, []float64{4, 8}, []float64{hours["a"], hours["b"]})
	require.Len(t, res.Violations, 1)
	assert.Equal(t, models.ViolationFairnessSpread, res.Violations[0].Kind)
	assert.InDelta(t, 2.0, res.Violations[0].Penalty, 1e-9)
}
