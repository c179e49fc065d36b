package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// Staff is a café employee as supplied by the staff directory.
type Staff struct {
	ID                 string         `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	Nickname           *string        `db:"nickname" json:"nickname,omitempty"`
	BaseHourlyRate     float64        `db:"base_hourly_rate" json:"base_hourly_rate"`
	WeekendMultiplier  float64        `db:"weekend_multiplier" json:"weekend_multiplier"`
	HolidayMultiplier  float64        `db:"holiday_multiplier" json:"holiday_multiplier"`
	OvertimeMultiplier float64        `db:"overtime_multiplier" json:"overtime_multiplier"`
	KeyHolder          bool           `db:"key_holder" json:"key_holder"`
	Roles              pq.StringArray `db:"roles" json:"roles"`
	Points             int            `db:"points" json:"points"`
	Active             bool           `db:"active" json:"active"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// DisplayName prefers the nickname when one is set.
func (s Staff) DisplayName() string {
	if s.Nickname != nil && strings.TrimSpace(*s.Nickname) != "" {
		return *s.Nickname
	}
	return s.Name
}

// HasRole reports whether the staff member can work a shift requiring role.
// An empty role or "any" matches everyone.
func (s Staff) HasRole(role string) bool {
	role = strings.TrimSpace(role)
	if role == "" || strings.EqualFold(role, "any") {
		return true
	}
	for _, r := range s.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// StaffFilter captures list criteria for the staff directory.
type StaffFilter struct {
	ActiveOnly bool
	Role       string
	Search     string
	Page       int
	PageSize   int
}
