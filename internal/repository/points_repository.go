package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/pkg/database"
)

// PointsRepository stores points events and keeps the staff balance in step.
type PointsRepository struct {
	db *sqlx.DB
}

// NewPointsRepository constructs the repository.
func NewPointsRepository(db *sqlx.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// Record inserts the event and increments staff.points in one transaction.
func (r *PointsRepository) Record(ctx context.Context, event *models.PointsEvent) error {
	if event == nil {
		return fmt.Errorf("points event payload is nil")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insertQuery = `
INSERT INTO points_events (id, staff_id, points, reason, source, created_at)
VALUES (:id, :staff_id, :points, :reason, :source, :created_at)
ON CONFLICT (id) DO NOTHING`
		res, err := sqlx.NamedExecContext(ctx, tx, insertQuery, event)
		if err != nil {
			return fmt.Errorf("insert points event: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert points event rows affected: %w", err)
		}
		if inserted == 0 {
			// already applied by an earlier attempt
			return nil
		}

		res, err = tx.ExecContext(ctx, `UPDATE staff SET points = points + $1, updated_at = $2 WHERE id = $3`, event.Points, event.CreatedAt, event.StaffID)
		if err != nil {
			return fmt.Errorf("increment staff points: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("increment staff points rows affected: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// ListByStaff returns a staff member's events, newest first.
func (r *PointsRepository) ListByStaff(ctx context.Context, staffID string, limit int) ([]models.PointsEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, staff_id, points, reason, source, created_at FROM points_events WHERE staff_id = $1 ORDER BY created_at DESC LIMIT $2`
	var events []models.PointsEvent
	if err := r.db.SelectContext(ctx, &events, query, staffID, limit); err != nil {
		return nil, fmt.Errorf("list points events: %w", err)
	}
	return events, nil
}
