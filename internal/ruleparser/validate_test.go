package ruleparser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

func TestValidateMaxHoursMissingStaff(t *testing.T) {
	res := Validate(models.MaxHours{MaxHoursPerWeek: 35})
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, FieldError{Field: "parameters.staff_id", Message: "is required"}, res.Errors[0])
}

func TestValidateFairnessPasses(t *testing.T) {
	res := Validate(models.Fairness{MaxHourSpread: 10})
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
}

func TestValidateBounds(t *testing.T) {
	res := Validate(models.MaxConsecutiveDays{MaxDays: 9})
	require.False(t, res.IsValid)
	assert.Equal(t, "parameters.max_days", res.Errors[0].Field)
	assert.Equal(t, "must be at most 7", res.Errors[0].Message)

	res = Validate(models.DayOff{StaffID: "s1", DayOfWeek: "someday"})
	require.False(t, res.IsValid)
	assert.Equal(t, "parameters.day_of_week", res.Errors[0].Field)

	res = Validate(models.NoBackToBack{MinRestHours: 30})
	require.False(t, res.IsValid)
	assert.True(t, Validate(models.NoBackToBack{}).IsValid)
	assert.True(t, Validate(models.RequiresKeysForOpening{}).IsValid)
	assert.False(t, Validate(nil).IsValid)
}

func TestValidateEnvelope(t *testing.T) {
	c, res := ValidateEnvelope(models.ConstraintEnvelope{
		Type:       models.ConstraintFairness,
		Parameters: json.RawMessage(`{"max_hour_spread": 10}`),
	})
	assert.True(t, res.IsValid)
	assert.Equal(t, models.Fairness{MaxHourSpread: 10}, c)

	_, res = ValidateEnvelope(models.ConstraintEnvelope{Type: "overtime"})
	require.False(t, res.IsValid)
	assert.Equal(t, "type", res.Errors[0].Field)

	_, res = ValidateEnvelope(models.ConstraintEnvelope{
		Type:       models.ConstraintMaxHours,
		Parameters: json.RawMessage(`{"staff_id": "s1", "max_hours_per_week": "lots"}`),
	})
	require.False(t, res.IsValid)
	assert.Equal(t, FieldError{Field: "parameters.max_hours_per_week", Message: "must be a number"}, res.Errors[0])
}

func TestDescribeEveryKind(t *testing.T) {
	names := map[string]string{"s1": "Alex"}
	for _, kind := range models.ConstraintTypes {
		c, _ := models.NewConstraint(kind)
		text := Describe(c, names)
		assert.NotEmpty(t, text, kind)
		assert.NotContains(t, text, "Constraint ", kind)
	}

	assert.Equal(t, "Alex works at most 20 hours per week", Describe(models.MaxHours{StaffID: "s1", MaxHoursPerWeek: 20}, names))
	assert.Equal(t, "Staff s9 is off on Sunday", Describe(models.DayOff{StaffID: "s9", DayOfWeek: "sunday"}, names))
	assert.Equal(t, "Everyone should get at least 10 hours between shifts", Describe(models.NoBackToBack{}, nil))
	assert.Equal(t, "A key holder must lead every opening shift", Describe(models.RequiresKeysForOpening{}, nil))
}
