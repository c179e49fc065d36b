package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

// ErrOpenClockRecordExists is returned when the open-session unique index rejects an insert.
var ErrOpenClockRecordExists = errors.New("open clock record already exists")

const uniqueViolation = "23505"

const clockRecordColumns = `id, staff_id, shift_id, clock_in_time, clock_out_time, rostered_start, rostered_end, variance_reason, requires_approval, points_awarded, approved_by, approved_at, clock_in_location, clock_out_location, created_at, updated_at`

// ClockRecordRepository persists clock sessions.
type ClockRecordRepository struct {
	db *sqlx.DB
}

// NewClockRecordRepository constructs the repository.
func NewClockRecordRepository(db *sqlx.DB) *ClockRecordRepository {
	return &ClockRecordRepository{db: db}
}

// Create inserts an open session.
func (r *ClockRecordRepository) Create(ctx context.Context, record *models.ClockRecord) error {
	if record == nil {
		return fmt.Errorf("clock record payload is nil")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const query = `
INSERT INTO clock_records (id, staff_id, shift_id, clock_in_time, clock_out_time, rostered_start, rostered_end, variance_reason, requires_approval, points_awarded, approved_by, approved_at, clock_in_location, clock_out_location, created_at, updated_at)
VALUES (:id, :staff_id, :shift_id, :clock_in_time, :clock_out_time, :rostered_start, :rostered_end, :variance_reason, :requires_approval, :points_awarded, :approved_by, :approved_at, :clock_in_location, :clock_out_location, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrOpenClockRecordExists
		}
		return fmt.Errorf("insert clock record: %w", err)
	}
	return nil
}

// FindByID returns a record or sql.ErrNoRows.
func (r *ClockRecordRepository) FindByID(ctx context.Context, id string) (*models.ClockRecord, error) {
	query := "SELECT " + clockRecordColumns + " FROM clock_records WHERE id = $1"
	var record models.ClockRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindOpenByStaff returns the staff member's open session or sql.ErrNoRows.
func (r *ClockRecordRepository) FindOpenByStaff(ctx context.Context, staffID string) (*models.ClockRecord, error) {
	query := "SELECT " + clockRecordColumns + " FROM clock_records WHERE staff_id = $1 AND clock_out_time IS NULL ORDER BY clock_in_time DESC LIMIT 1"
	var record models.ClockRecord
	if err := r.db.GetContext(ctx, &record, query, staffID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Close records the clock-out. The approval flag is OR-ed so it can only be raised here.
func (r *ClockRecordRepository) Close(ctx context.Context, id string, update models.ClockOutUpdate) (*models.ClockRecord, error) {
	query := `UPDATE clock_records
SET clock_out_time = $1,
    clock_out_location = $2,
    variance_reason = COALESCE($3, variance_reason),
    requires_approval = requires_approval OR $4,
    updated_at = $5
WHERE id = $6 AND clock_out_time IS NULL
RETURNING ` + clockRecordColumns
	var record models.ClockRecord
	err := r.db.GetContext(ctx, &record, query,
		update.ClockOutTime, update.Location, update.VarianceReason, update.RequiresApproval, time.Now().UTC(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("close clock record: %w", err)
	}
	return &record, nil
}

// Approve clears the approval flag and stamps the approver.
func (r *ClockRecordRepository) Approve(ctx context.Context, id, approver string, at time.Time) (*models.ClockRecord, error) {
	query := `UPDATE clock_records
SET requires_approval = FALSE, approved_by = $1, approved_at = $2, updated_at = $2
WHERE id = $3
RETURNING ` + clockRecordColumns
	var record models.ClockRecord
	if err := r.db.GetContext(ctx, &record, query, approver, at.UTC(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("approve clock record: %w", err)
	}
	return &record, nil
}

// List returns a page of records, newest first, with the total count.
func (r *ClockRecordRepository) List(ctx context.Context, filter models.ClockRecordFilter) ([]models.ClockRecord, int, error) {
	where := strings.Builder{}
	where.WriteString(" WHERE 1=1")
	args := []interface{}{}
	if filter.StaffID != "" {
		args = append(args, filter.StaffID)
		fmt.Fprintf(&where, " AND staff_id = $%d", len(args))
	}
	if filter.RequiresApproval != nil {
		args = append(args, *filter.RequiresApproval)
		fmt.Fprintf(&where, " AND requires_approval = $%d", len(args))
	}
	if filter.OpenOnly {
		where.WriteString(" AND clock_out_time IS NULL")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM clock_records"+where.String(), args...); err != nil {
		return nil, 0, fmt.Errorf("count clock records: %w", err)
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf("SELECT %s FROM clock_records%s ORDER BY clock_in_time DESC, id ASC LIMIT $%d OFFSET $%d", clockRecordColumns, where.String(), len(args)-1, len(args))

	var records []models.ClockRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list clock records: %w", err)
	}
	return records, total, nil
}

// FlagStale raises the approval flag on sessions still open since before cutoff.
func (r *ClockRecordRepository) FlagStale(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	const query = `UPDATE clock_records
SET requires_approval = requires_approval OR TRUE,
    variance_reason = COALESCE(variance_reason, $1),
    updated_at = $2
WHERE clock_out_time IS NULL AND clock_in_time < $3 AND requires_approval = FALSE`
	res, err := r.db.ExecContext(ctx, query, reason, time.Now().UTC(), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("flag stale clock records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("flag stale clock records rows affected: %w", err)
	}
	return affected, nil
}
