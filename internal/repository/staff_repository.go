package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

const staffColumns = `id, name, nickname, base_hourly_rate, weekend_multiplier, holiday_multiplier, overtime_multiplier, key_holder, roles, points, active, created_at, updated_at`

// StaffRepository reads the staff directory. Staff rows are never hard-deleted.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs the repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// List returns a page of staff matching the filter together with the total count.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error) {
	where := strings.Builder{}
	where.WriteString(" WHERE 1=1")
	args := []interface{}{}
	if filter.ActiveOnly {
		where.WriteString(" AND active = TRUE")
	}
	if role := strings.TrimSpace(filter.Role); role != "" {
		args = append(args, role)
		fmt.Fprintf(&where, " AND $%d = ANY(roles)", len(args))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		fmt.Fprintf(&where, " AND (LOWER(name) LIKE $%d OR LOWER(COALESCE(nickname, '')) LIKE $%d)", len(args), len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM staff"+where.String(), args...); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf("SELECT %s FROM staff%s ORDER BY name ASC, id ASC LIMIT $%d OFFSET $%d", staffColumns, where.String(), len(args)-1, len(args))

	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}
	return staff, total, nil
}

// ListActive returns every active staff member ordered by id.
func (r *StaffRepository) ListActive(ctx context.Context) ([]models.Staff, error) {
	query := "SELECT " + staffColumns + " FROM staff WHERE active = TRUE ORDER BY id ASC"
	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query); err != nil {
		return nil, fmt.Errorf("list active staff: %w", err)
	}
	return staff, nil
}

// FindByID returns a single staff member or sql.ErrNoRows.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	query := "SELECT " + staffColumns + " FROM staff WHERE id = $1"
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		return nil, err
	}
	return &staff, nil
}
