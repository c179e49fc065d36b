package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

const availabilityColumns = `id, staff_id, day_of_week, hour_start, hour_end, status, created_at, updated_at`

// AvailabilityRepository persists weekly availability windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// DB exposes the connection for callers that need a transaction.
func (r *AvailabilityRepository) DB() *sqlx.DB {
	return r.db
}

func (r *AvailabilityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LockStaff serialises availability writes for one staff member until the
// surrounding transaction ends. exec must be a transaction.
func (r *AvailabilityRepository) LockStaff(ctx context.Context, exec sqlx.ExtContext, staffID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "availability:"+staffID); err != nil {
		return fmt.Errorf("lock staff availability: %w", err)
	}
	return nil
}

// ListByStaff returns the windows of one staff member ordered by day and hour.
func (r *AvailabilityRepository) ListByStaff(ctx context.Context, exec sqlx.ExtContext, staffID string) ([]models.AvailabilitySlot, error) {
	query := "SELECT " + availabilityColumns + " FROM staff_availability WHERE staff_id = $1 ORDER BY day_of_week ASC, hour_start ASC"
	var slots []models.AvailabilitySlot
	if err := sqlx.SelectContext(ctx, r.exec(exec), &slots, query, staffID); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return slots, nil
}

// ListForStaff returns all windows belonging to the given staff ids.
func (r *AvailabilityRepository) ListForStaff(ctx context.Context, staffIDs []string) ([]models.AvailabilitySlot, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	query := "SELECT " + availabilityColumns + " FROM staff_availability WHERE staff_id = ANY($1) ORDER BY staff_id ASC, day_of_week ASC, hour_start ASC"
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, pq.Array(staffIDs)); err != nil {
		return nil, fmt.Errorf("list availability for staff: %w", err)
	}
	return slots, nil
}

// ReplaceDays deletes the listed days of a staff member and inserts the given windows.
func (r *AvailabilityRepository) ReplaceDays(ctx context.Context, exec sqlx.ExtContext, staffID string, days []int, slots []models.AvailabilitySlot) error {
	target := r.exec(exec)
	if len(days) > 0 {
		const deleteQuery = `DELETE FROM staff_availability WHERE staff_id = $1 AND day_of_week = ANY($2)`
		if _, err := target.ExecContext(ctx, deleteQuery, staffID, pq.Array(days)); err != nil {
			return fmt.Errorf("delete availability days: %w", err)
		}
	}

	const insertQuery = `
INSERT INTO staff_availability (id, staff_id, day_of_week, hour_start, hour_end, status, created_at, updated_at)
VALUES (:id, :staff_id, :day_of_week, :hour_start, :hour_end, :status, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		slot.StaffID = staffID
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		slot.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, slot); err != nil {
			return fmt.Errorf("insert availability: %w", err)
		}
	}
	return nil
}
