package models

import "time"

// ClockRecord is one clock session. RequiresApproval only ever flips false through approval.
type ClockRecord struct {
	ID               string     `db:"id" json:"id"`
	StaffID          string     `db:"staff_id" json:"staff_id"`
	ShiftID          *string    `db:"shift_id" json:"shift_id,omitempty"`
	ClockInTime      time.Time  `db:"clock_in_time" json:"clock_in_time"`
	ClockOutTime     *time.Time `db:"clock_out_time" json:"clock_out_time,omitempty"`
	RosteredStart    *string    `db:"rostered_start" json:"rostered_start,omitempty"`
	RosteredEnd      *string    `db:"rostered_end" json:"rostered_end,omitempty"`
	VarianceReason   *string    `db:"variance_reason" json:"variance_reason,omitempty"`
	RequiresApproval bool       `db:"requires_approval" json:"requires_approval"`
	PointsAwarded    int        `db:"points_awarded" json:"points_awarded"`
	ApprovedBy       *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	ClockInLocation  *string    `db:"clock_in_location" json:"clock_in_location,omitempty"`
	ClockOutLocation *string    `db:"clock_out_location" json:"clock_out_location,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Open reports whether the session has no clock-out yet.
func (r ClockRecord) Open() bool {
	return r.ClockOutTime == nil
}

// ClockRecordFilter narrows clock record listings.
type ClockRecordFilter struct {
	StaffID          string
	RequiresApproval *bool
	OpenOnly         bool
	Page             int
	PageSize         int
}

// ClockOutUpdate carries the values written when closing a session.
type ClockOutUpdate struct {
	ClockOutTime     time.Time
	Location         *string
	VarianceReason   *string
	RequiresApproval bool
}
