package models

import "time"

// PointsEvent is an award emitted to the points sink.
type PointsEvent struct {
	ID        string    `db:"id" json:"id"`
	StaffID   string    `db:"staff_id" json:"staff_id"`
	Points    int       `db:"points" json:"points"`
	Reason    string    `db:"reason" json:"reason"`
	Source    string    `db:"source" json:"source"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PointsSourceClock tags awards that originate from clock-ins.
const PointsSourceClock = "clock"
