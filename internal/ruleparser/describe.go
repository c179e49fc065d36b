package ruleparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

// Describe renders a constraint as a sentence for audit and display.
func Describe(c models.Constraint, staffNames map[string]string) string {
	who := func(id string) string {
		if id == "" {
			return "Everyone"
		}
		if name, ok := staffNames[id]; ok && name != "" {
			return name
		}
		return "Staff " + id
	}

	switch v := models.Deref(c).(type) {
	case models.MaxHours:
		return fmt.Sprintf("%s works at most %s hours per week", who(v.StaffID), num(v.MaxHoursPerWeek))
	case models.MinHours:
		return fmt.Sprintf("%s should work at least %s hours per week", who(v.StaffID), num(v.MinHoursPerWeek))
	case models.PreferredHours:
		return fmt.Sprintf("%s prefers about %s hours per week", who(v.StaffID), num(v.PreferredHoursPerWeek))
	case models.MaxConsecutiveDays:
		return fmt.Sprintf("%s should work no more than %d days in a row", who(v.StaffID), v.MaxDays)
	case models.DayOff:
		return fmt.Sprintf("%s is off on %s", who(v.StaffID), capitalize(v.DayOfWeek))
	case models.NoBackToBack:
		return fmt.Sprintf("%s should get at least %s hours between shifts", who(v.StaffID), num(v.RestHours()))
	case models.RequiresKeysForOpening:
		return fmt.Sprintf("A key holder must lead every %s shift", v.OpeningShiftType())
	case models.Fairness:
		return fmt.Sprintf("Weekly hours should differ by no more than %s between staff", num(v.MaxHourSpread))
	case nil:
		return "Unknown constraint"
	}
	return fmt.Sprintf("Constraint %s", c.Type())
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
