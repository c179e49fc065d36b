package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

func newStaffRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var staffRowColumns = []string{"id", "name", "nickname", "base_hourly_rate", "weekend_multiplier", "holiday_multiplier", "overtime_multiplier", "key_holder", "roles", "points", "active", "created_at", "updated_at"}

func TestStaffRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newStaffRepoMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM staff WHERE active = TRUE ORDER BY id ASC")).
		WillReturnRows(sqlmock.NewRows(staffRowColumns).
			AddRow("s1", "Alexandra", "Alex", 28.5, 1.25, 2.0, 1.5, true, "{barista,floor}", 120, true, now, now).
			AddRow("s2", "Sam", nil, 26.0, 1.25, 2.0, 1.5, false, "{}", 0, true, now, now))

	staff, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "Alex", staff[0].DisplayName())
	assert.True(t, staff[0].HasRole("Barista"))
	assert.False(t, staff[1].HasRole("barista"))
	assert.True(t, staff[1].HasRole("any"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newStaffRepoMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM staff WHERE 1=1 AND active = TRUE AND $1 = ANY(roles) AND (LOWER(name) LIKE $2")).
		WithArgs("barista", "%al%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY name ASC, id ASC LIMIT $3 OFFSET $4")).
		WithArgs("barista", "%al%", 50, 0).
		WillReturnRows(sqlmock.NewRows(staffRowColumns))

	staff, total, err := repo.List(context.Background(), models.StaffFilter{ActiveOnly: true, Role: "barista", Search: " Al "})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, staff)
	assert.NoError(t, mock.ExpectationsWereMet())
}
