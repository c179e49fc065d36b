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

func newAvailabilityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAvailabilityRepositoryReplaceDays(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM staff_availability WHERE staff_id = $1 AND day_of_week = ANY($2)")).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO staff_availability")).
		WithArgs(sqlmock.AnyArg(), "s1", 1, 7, 12, "available", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	slots := []models.AvailabilitySlot{{DayOfWeek: 1, HourStart: 7, HourEnd: 12, Status: models.AvailabilityAvailable}}
	require.NoError(t, repo.ReplaceDays(context.Background(), nil, "s1", []int{1}, slots))
	assert.Equal(t, "s1", slots[0].StaffID)
	assert.NotEmpty(t, slots[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryLockStaffInTransaction(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("availability:s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM staff_availability WHERE staff_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "staff_id", "day_of_week", "hour_start", "hour_end", "status", "created_at", "updated_at"}))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.LockStaff(context.Background(), tx, "s1"))
	_, err = repo.ListByStaff(context.Background(), tx, "s1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryListForStaff(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	slots, err := repo.ListForStaff(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, slots)

	mock.ExpectQuery(regexp.QuoteMeta("FROM staff_availability WHERE staff_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "staff_id", "day_of_week", "hour_start", "hour_end", "status", "created_at", "updated_at"}).
			AddRow("a1", "s1", 0, 6, 26, "preferred_not", time.Now(), time.Now()))

	slots, err = repo.ListForStaff(context.Background(), []string{"s1"})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, models.AvailabilityPreferredNot, slots[0].Status)
	assert.Equal(t, 26, slots[0].HourEnd)
	assert.NoError(t, mock.ExpectationsWereMet())
}
