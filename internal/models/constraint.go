package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ConstraintType names one of the closed set of roster constraint kinds.
type ConstraintType string

const (
	ConstraintMaxHours               ConstraintType = "max_hours"
	ConstraintMinHours               ConstraintType = "min_hours"
	ConstraintPreferredHours         ConstraintType = "preferred_hours"
	ConstraintMaxConsecutiveDays     ConstraintType = "max_consecutive_days"
	ConstraintDayOff                 ConstraintType = "day_off"
	ConstraintNoBackToBack           ConstraintType = "no_back_to_back"
	ConstraintRequiresKeysForOpening ConstraintType = "requires_keys_for_opening"
	ConstraintFairness               ConstraintType = "fairness"
)

// ConstraintTypes lists every supported kind in a stable order.
var ConstraintTypes = []ConstraintType{
	ConstraintMaxHours,
	ConstraintMinHours,
	ConstraintPreferredHours,
	ConstraintMaxConsecutiveDays,
	ConstraintDayOff,
	ConstraintNoBackToBack,
	ConstraintRequiresKeysForOpening,
	ConstraintFairness,
}

// Default parameter values applied when a constraint omits them.
const (
	DefaultMinRestHours     = 10.0
	DefaultOpeningShiftType = "opening"
)

// Constraint is the sealed union of roster constraint kinds.
// Only types in this package implement it.
type Constraint interface {
	Type() ConstraintType
	// Hard constraints exclude candidates; soft ones add weighted penalties.
	Hard() bool
	sealed()
}

// MaxHours caps a staff member's weekly hours.
type MaxHours struct {
	StaffID         string  `json:"staff_id" validate:"required"`
	MaxHoursPerWeek float64 `json:"max_hours_per_week" validate:"required,gt=0,lte=168"`
}

// MinHours asks for at least the given weekly hours.
type MinHours struct {
	StaffID         string  `json:"staff_id" validate:"required"`
	MinHoursPerWeek float64 `json:"min_hours_per_week" validate:"required,gt=0,lte=168"`
}

// PreferredHours targets a weekly hour total.
type PreferredHours struct {
	StaffID               string  `json:"staff_id" validate:"required"`
	PreferredHoursPerWeek float64 `json:"preferred_hours_per_week" validate:"required,gt=0,lte=168"`
}

// MaxConsecutiveDays limits runs of worked days. An empty StaffID applies to everyone.
type MaxConsecutiveDays struct {
	StaffID string `json:"staff_id,omitempty"`
	MaxDays int    `json:"max_days" validate:"required,min=1,max=7"`
}

// DayOff keeps a staff member off the roster on one weekday.
type DayOff struct {
	StaffID   string `json:"staff_id" validate:"required"`
	DayOfWeek string `json:"day_of_week" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
}

// NoBackToBack asks for a minimum rest gap between shifts. An empty StaffID applies to everyone.
type NoBackToBack struct {
	StaffID      string  `json:"staff_id,omitempty"`
	MinRestHours float64 `json:"min_rest_hours,omitempty" validate:"omitempty,gte=1,lte=24"`
}

// RequiresKeysForOpening demands a key holder in the lead position of matching shifts.
type RequiresKeysForOpening struct {
	ShiftType string `json:"shift_type,omitempty"`
}

// Fairness bounds the spread between the most and least rostered staff.
type Fairness struct {
	MaxHourSpread float64 `json:"max_hour_spread" validate:"required,gt=0"`
}

func (MaxHours) Type() ConstraintType               { return ConstraintMaxHours }
func (MinHours) Type() ConstraintType               { return ConstraintMinHours }
func (PreferredHours) Type() ConstraintType         { return ConstraintPreferredHours }
func (MaxConsecutiveDays) Type() ConstraintType     { return ConstraintMaxConsecutiveDays }
func (DayOff) Type() ConstraintType                 { return ConstraintDayOff }
func (NoBackToBack) Type() ConstraintType           { return ConstraintNoBackToBack }
func (RequiresKeysForOpening) Type() ConstraintType { return ConstraintRequiresKeysForOpening }
func (Fairness) Type() ConstraintType               { return ConstraintFairness }

func (MaxHours) Hard() bool               { return true }
func (MinHours) Hard() bool               { return false }
func (PreferredHours) Hard() bool         { return false }
func (MaxConsecutiveDays) Hard() bool     { return false }
func (DayOff) Hard() bool                 { return true }
func (NoBackToBack) Hard() bool           { return false }
func (RequiresKeysForOpening) Hard() bool { return true }
func (Fairness) Hard() bool               { return false }

func (MaxHours) sealed()               {}
func (MinHours) sealed()               {}
func (PreferredHours) sealed()         {}
func (MaxConsecutiveDays) sealed()     {}
func (DayOff) sealed()                 {}
func (NoBackToBack) sealed()           {}
func (RequiresKeysForOpening) sealed() {}
func (Fairness) sealed()               {}

// RestHours returns the configured minimum rest or the default.
func (c NoBackToBack) RestHours() float64 {
	if c.MinRestHours <= 0 {
		return DefaultMinRestHours
	}
	return c.MinRestHours
}

// OpeningShiftType returns the shift type the key requirement applies to.
func (c RequiresKeysForOpening) OpeningShiftType() string {
	if c.ShiftType == "" {
		return DefaultOpeningShiftType
	}
	return c.ShiftType
}

// ConstraintEnvelope is the wire and storage shape of a constraint.
type ConstraintEnvelope struct {
	Type       ConstraintType  `json:"type"`
	Parameters json.RawMessage `json:"parameters"`
}

// NewConstraint returns a zero value of the given kind, or false when the kind is unknown.
func NewConstraint(t ConstraintType) (Constraint, bool) {
	switch t {
	case ConstraintMaxHours:
		return &MaxHours{}, true
	case ConstraintMinHours:
		return &MinHours{}, true
	case ConstraintPreferredHours:
		return &PreferredHours{}, true
	case ConstraintMaxConsecutiveDays:
		return &MaxConsecutiveDays{}, true
	case ConstraintDayOff:
		return &DayOff{}, true
	case ConstraintNoBackToBack:
		return &NoBackToBack{}, true
	case ConstraintRequiresKeysForOpening:
		return &RequiresKeysForOpening{}, true
	case ConstraintFairness:
		return &Fairness{}, true
	}
	return nil, false
}

// DecodeConstraint decodes parameters for the given kind. The returned value is
// always a non-pointer struct so callers can type switch on value types.
func DecodeConstraint(env ConstraintEnvelope) (Constraint, error) {
	target, ok := NewConstraint(env.Type)
	if !ok {
		return nil, fmt.Errorf("unknown constraint type %q", env.Type)
	}
	params := env.Parameters
	if len(bytes.TrimSpace(params)) == 0 || bytes.Equal(bytes.TrimSpace(params), []byte("null")) {
		params = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("decode %s parameters: %w", env.Type, err)
	}
	if d, ok := target.(*DayOff); ok {
		d.DayOfWeek = strings.ToLower(strings.TrimSpace(d.DayOfWeek))
	}
	return Deref(target), nil
}

// Deref converts pointer constraint values produced by NewConstraint into value types.
func Deref(c Constraint) Constraint {
	switch v := c.(type) {
	case *MaxHours:
		return *v
	case *MinHours:
		return *v
	case *PreferredHours:
		return *v
	case *MaxConsecutiveDays:
		return *v
	case *DayOff:
		return *v
	case *NoBackToBack:
		return *v
	case *RequiresKeysForOpening:
		return *v
	case *Fairness:
		return *v
	}
	return c
}

// EncodeConstraint renders c as a ConstraintEnvelope.
func EncodeConstraint(c Constraint) (ConstraintEnvelope, error) {
	if c == nil {
		return ConstraintEnvelope{}, fmt.Errorf("nil constraint")
	}
	params, err := json.Marshal(c)
	if err != nil {
		return ConstraintEnvelope{}, fmt.Errorf("encode %s parameters: %w", c.Type(), err)
	}
	return ConstraintEnvelope{Type: c.Type(), Parameters: params}, nil
}

// ConstraintStaffID returns the staff member a constraint targets, or "" for global ones.
func ConstraintStaffID(c Constraint) string {
	switch v := Deref(c).(type) {
	case MaxHours:
		return v.StaffID
	case MinHours:
		return v.StaffID
	case PreferredHours:
		return v.StaffID
	case MaxConsecutiveDays:
		return v.StaffID
	case DayOff:
		return v.StaffID
	case NoBackToBack:
		return v.StaffID
	case RequiresKeysForOpening, Fairness:
		return ""
	}
	return ""
}
