package models

import "time"

// ShiftRequirement describes how many people of which role a shift window needs.
type ShiftRequirement struct {
	DayOfWeek      int    `json:"day_of_week" yaml:"-"`
	ShiftType      string `json:"shift_type" yaml:"shift_type"`
	ScheduledStart string `json:"scheduled_start" yaml:"start"`
	ScheduledEnd   string `json:"scheduled_end" yaml:"end"`
	RoleRequired   string `json:"role_required,omitempty" yaml:"role"`
	MinStaff       int    `json:"min_staff" yaml:"min_staff"`
	MaxStaff       int    `json:"max_staff" yaml:"max_staff"`
	RequiresKeys   bool   `json:"requires_keys" yaml:"requires_keys"`
}

// RosterShift is a persisted position of a generated week. A nil StaffID is an unfilled shift.
type RosterShift struct {
	ID              string    `db:"id" json:"id"`
	StaffID         *string   `db:"staff_id" json:"staff_id"`
	StaffName       *string   `db:"staff_name" json:"staff_name,omitempty"`
	DayOfWeek       int       `db:"day_of_week" json:"day_of_week"`
	ShiftType       string    `db:"shift_type" json:"shift_type"`
	ScheduledStart  string    `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd    string    `db:"scheduled_end" json:"scheduled_end"`
	RoleRequired    string    `db:"role_required" json:"role_required"`
	RequiresKeys    bool      `db:"requires_keys" json:"requires_keys"`
	RosterWeekStart time.Time `db:"roster_week_start" json:"roster_week_start"`
	IsPublished     bool      `db:"is_published" json:"is_published"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Hours returns the scheduled duration in hours, or zero when the times are malformed.
func (s RosterShift) Hours() float64 {
	start, err := ParseClock(s.ScheduledStart)
	if err != nil {
		return 0
	}
	end, err := ParseClock(s.ScheduledEnd)
	if err != nil || end <= start {
		return 0
	}
	return float64(end-start) / 60
}

// Violation is a soft failure recorded by roster generation.
type Violation struct {
	Kind      string  `json:"kind"`
	RuleID    *string `json:"rule_id,omitempty"`
	StaffID   *string `json:"staff_id,omitempty"`
	DayOfWeek *int    `json:"day_of_week,omitempty"`
	ShiftType string  `json:"shift_type,omitempty"`
	Penalty   float64 `json:"penalty"`
	Message   string  `json:"message"`
}

// ViolationUnfilledShift marks a required position no candidate could take.
const ViolationUnfilledShift = "unfilled_shift"

// ViolationPreferredNot marks hours rostered inside a preferred_not window.
const ViolationPreferredNot = "preferred_not"

// ViolationFairnessSpread marks the built-in fairness preference residual.
const ViolationFairnessSpread = "prefer_fairness"

// RosterWeek is a stored week with its summary.
type RosterWeek struct {
	WeekStart   time.Time     `json:"week_start"`
	IsPublished bool          `json:"is_published"`
	Shifts      []RosterShift `json:"shifts"`
	Unfilled    int           `json:"unfilled"`
}

// RosterExport is a rendered roster file with its download link.
type RosterExport struct {
	ID        string    `json:"id"`
	WeekStart time.Time `json:"week_start"`
	Format    string    `json:"format"`
	Path      string    `json:"-"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
