package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

const rosterShiftColumns = `rs.id, rs.staff_id, s.name AS staff_name, rs.day_of_week, rs.shift_type, rs.scheduled_start, rs.scheduled_end, rs.role_required, rs.requires_keys, rs.roster_week_start, rs.is_published, rs.created_at`

// RosterShiftRepository persists generated roster weeks.
type RosterShiftRepository struct {
	db *sqlx.DB
}

// NewRosterShiftRepository constructs the repository.
func NewRosterShiftRepository(db *sqlx.DB) *RosterShiftRepository {
	return &RosterShiftRepository{db: db}
}

// DB exposes the connection for callers that need a transaction.
func (r *RosterShiftRepository) DB() *sqlx.DB {
	return r.db
}

func (r *RosterShiftRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByWeek returns all shifts of a week ordered by day and start time.
func (r *RosterShiftRepository) ListByWeek(ctx context.Context, weekStart time.Time) ([]models.RosterShift, error) {
	query := "SELECT " + rosterShiftColumns + ` FROM roster_shifts rs LEFT JOIN staff s ON s.id = rs.staff_id
WHERE rs.roster_week_start = $1 ORDER BY rs.day_of_week ASC, rs.scheduled_start ASC, rs.shift_type ASC, rs.id ASC`
	var shifts []models.RosterShift
	if err := r.db.SelectContext(ctx, &shifts, query, dateOnly(weekStart)); err != nil {
		return nil, fmt.Errorf("list roster shifts: %w", err)
	}
	return shifts, nil
}

// HasPublished reports whether any shift of the week is published.
func (r *RosterShiftRepository) HasPublished(ctx context.Context, exec sqlx.ExtContext, weekStart time.Time) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM roster_shifts WHERE roster_week_start = $1 AND is_published = TRUE)`
	var published bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &published, query, dateOnly(weekStart)); err != nil {
		return false, fmt.Errorf("check published roster: %w", err)
	}
	return published, nil
}

// ReplaceWeek deletes the unpublished shifts of the week and inserts the given ones.
func (r *RosterShiftRepository) ReplaceWeek(ctx context.Context, exec sqlx.ExtContext, weekStart time.Time, shifts []models.RosterShift) error {
	target := r.exec(exec)
	week := dateOnly(weekStart)
	if _, err := target.ExecContext(ctx, `DELETE FROM roster_shifts WHERE roster_week_start = $1 AND is_published = FALSE`, week); err != nil {
		return fmt.Errorf("delete roster week: %w", err)
	}

	const insertQuery = `
INSERT INTO roster_shifts (id, staff_id, day_of_week, shift_type, scheduled_start, scheduled_end, role_required, requires_keys, roster_week_start, is_published, created_at)
VALUES (:id, :staff_id, :day_of_week, :shift_type, :scheduled_start, :scheduled_end, :role_required, :requires_keys, :roster_week_start, :is_published, :created_at)`
	now := time.Now().UTC()
	for i := range shifts {
		shift := &shifts[i]
		if shift.ID == "" {
			shift.ID = uuid.NewString()
		}
		shift.RosterWeekStart = week
		shift.IsPublished = false
		if shift.CreatedAt.IsZero() {
			shift.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, shift); err != nil {
			return fmt.Errorf("insert roster shift: %w", err)
		}
	}
	return nil
}

// Publish marks every shift of the week published and returns the number of rows touched.
func (r *RosterShiftRepository) Publish(ctx context.Context, weekStart time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE roster_shifts SET is_published = TRUE WHERE roster_week_start = $1`, dateOnly(weekStart))
	if err != nil {
		return 0, fmt.Errorf("publish roster week: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("publish roster week rows affected: %w", err)
	}
	return affected, nil
}

// ListPublishedForStaffDay returns the staff member's published shifts on that
// day ordered by start. Shifts already worked to a clock-out are excluded.
func (r *RosterShiftRepository) ListPublishedForStaffDay(ctx context.Context, staffID string, weekStart time.Time, day int) ([]models.RosterShift, error) {
	query := "SELECT " + rosterShiftColumns + ` FROM roster_shifts rs LEFT JOIN staff s ON s.id = rs.staff_id
WHERE rs.staff_id = $1 AND rs.roster_week_start = $2 AND rs.day_of_week = $3 AND rs.is_published = TRUE
AND NOT EXISTS (SELECT 1 FROM clock_records cr WHERE cr.shift_id = rs.id AND cr.clock_out_time IS NOT NULL)
ORDER BY rs.scheduled_start ASC`
	var shifts []models.RosterShift
	if err := r.db.SelectContext(ctx, &shifts, query, staffID, dateOnly(weekStart), day); err != nil {
		return nil, fmt.Errorf("list published shifts for staff day: %w", err)
	}
	return shifts, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
