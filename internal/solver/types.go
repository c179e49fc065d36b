package solver

import (
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

// Objective weights. Unfilled required positions dominate every soft penalty.
const (
	UnfilledPenalty            = 1000.0
	OptionalFillReward         = 5.0
	PreferredNotPenaltyPerHour = 2.0
	PreferFairnessWeight       = 1.0
)

// Default search limits applied when Limits fields are zero.
const (
	DefaultMaxIterations = 2000
	DefaultTimeBudget    = 5 * time.Second
)

// ErrInvalidInput reports structurally malformed requirements.
var ErrInvalidInput = errors.New("invalid solver input")

// Requirement is one shift window to staff. Start and End are minutes from the
// start of the trading day and may run past midnight up to 26:00.
type Requirement struct {
	DayOfWeek    int
	ShiftType    string
	Start        int
	End          int
	Role         string
	MinStaff     int
	MaxStaff     int
	RequiresKeys bool
}

// RequirementFromModel parses a stored requirement's clock strings.
func RequirementFromModel(m models.ShiftRequirement) (Requirement, error) {
	start, err := models.ParseClock(m.ScheduledStart)
	if err != nil {
		return Requirement{}, err
	}
	end, err := models.ParseClock(m.ScheduledEnd)
	if err != nil {
		return Requirement{}, err
	}
	return Requirement{
		DayOfWeek:    m.DayOfWeek,
		ShiftType:    m.ShiftType,
		Start:        start,
		End:          end,
		Role:         m.RoleRequired,
		MinStaff:     m.MinStaff,
		MaxStaff:     m.MaxStaff,
		RequiresKeys: m.RequiresKeys,
	}, nil
}

func (r Requirement) validate() error {
	switch {
	case r.DayOfWeek < 0 || r.DayOfWeek > 6:
		return fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidInput, r.DayOfWeek)
	case r.Start < 0 || r.End > models.MaxClockHour*60:
		return fmt.Errorf("%w: %s shift outside trading day", ErrInvalidInput, r.ShiftType)
	case r.End <= r.Start:
		return fmt.Errorf("%w: %s shift ends before it starts", ErrInvalidInput, r.ShiftType)
	case r.MinStaff < 0 || r.MaxStaff < 1 || r.MinStaff > r.MaxStaff:
		return fmt.Errorf("%w: %s shift staffing bounds %d..%d", ErrInvalidInput, r.ShiftType, r.MinStaff, r.MaxStaff)
	}
	return nil
}

// Rule is an active weighted constraint. Weight 100 applies the raw penalty.
type Rule struct {
	ID         string
	Weight     int
	Constraint models.Constraint
}

// Options are per-run generation switches.
type Options struct {
	MaxHoursPerWeek float64
	PreferFairness  bool
}

// Limits bound the improvement phase.
type Limits struct {
	MaxIterations int
	TimeBudget    time.Duration
}

// Input is an immutable snapshot of everything one generation run reads.
type Input struct {
	WeekStart    time.Time
	Requirements []Requirement
	Staff        []models.Staff
	Availability []models.AvailabilitySlot
	Rules        []Rule
	Options      Options
	Limits       Limits
}

// Assignment is one position of the generated roster. StaffID is nil when unfilled.
type Assignment struct {
	Requirement  int     `json:"requirement"`
	Position     int     `json:"position"`
	DayOfWeek    int     `json:"day_of_week"`
	ShiftType    string  `json:"shift_type"`
	Start        int     `json:"start_minute"`
	End          int     `json:"end_minute"`
	Role         string  `json:"role,omitempty"`
	RequiresKeys bool    `json:"requires_keys"`
	Required     bool    `json:"required"`
	Lead         bool    `json:"lead"`
	StaffID      *string `json:"staff_id"`
}

// Hours returns the assignment length in hours.
func (a Assignment) Hours() float64 {
	return float64(a.End-a.Start) / 60
}

// Stop reasons reported in Stats.
const (
	StopConverged     = "converged"
	StopMaxIterations = "max_iterations"
	StopTimeBudget    = "time_budget"
	StopCancelled     = "cancelled"
)

// Stats describes how a run went.
type Stats struct {
	Positions    int           `json:"positions"`
	Required     int           `json:"required"`
	Filled       int           `json:"filled"`
	Unfilled     int           `json:"unfilled"`
	Iterations   int           `json:"iterations"`
	Improvements int           `json:"improvements"`
	StoppedBy    string        `json:"stopped_by"`
	Duration     time.Duration `json:"duration"`
}

// Result is the best roster found. Score is the objective value; lower is better.
type Result struct {
	Assignments []Assignment       `json:"assignments"`
	Violations  []models.Violation `json:"violations"`
	Score       float64            `json:"score"`
	Stats       Stats              `json:"stats"`
}
