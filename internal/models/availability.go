package models

import "time"

// AvailabilityStatus classifies a staff availability window.
type AvailabilityStatus string

const (
	AvailabilityAvailable    AvailabilityStatus = "available"
	AvailabilityPreferredNot AvailabilityStatus = "preferred_not"
	AvailabilityUnavailable  AvailabilityStatus = "unavailable"
)

// Valid reports whether s is a known status.
func (s AvailabilityStatus) Valid() bool {
	switch s {
	case AvailabilityAvailable, AvailabilityPreferredNot, AvailabilityUnavailable:
		return true
	}
	return false
}

// AvailabilitySlot is an hour range on one weekday for one staff member.
type AvailabilitySlot struct {
	ID        string             `db:"id" json:"id"`
	StaffID   string             `db:"staff_id" json:"staff_id"`
	DayOfWeek int                `db:"day_of_week" json:"day_of_week"`
	HourStart int                `db:"hour_start" json:"hour_start"`
	HourEnd   int                `db:"hour_end" json:"hour_end"`
	Status    AvailabilityStatus `db:"status" json:"status"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether two slots on the same day share at least one hour.
func (a AvailabilitySlot) Overlaps(b AvailabilitySlot) bool {
	return a.DayOfWeek == b.DayOfWeek && a.HourStart < b.HourEnd && b.HourStart < a.HourEnd
}
