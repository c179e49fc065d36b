package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type staffStub struct {
	items []models.Staff
	err   error
}

func (s *staffStub) ListActive(ctx context.Context) ([]models.Staff, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Staff
	for _, member := range s.items {
		if member.Active {
			out = append(out, member)
		}
	}
	return out, nil
}

func (s *staffStub) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	var out []models.Staff
	for _, member := range s.items {
		if filter.ActiveOnly && !member.Active {
			continue
		}
		if filter.Role != "" && !member.HasRole(filter.Role) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(member.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, member)
	}
	return out, len(out), nil
}

func (s *staffStub) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	for _, member := range s.items {
		if member.ID == id {
			cp := member
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func staffMember(id, name string, keyHolder bool, roles ...string) models.Staff {
	return models.Staff{ID: id, Name: name, KeyHolder: keyHolder, Roles: roles, Active: true}
}

type memoryCacheRepo struct {
	items   map[string][]byte
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = payload
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	delete(m.items, pattern)
	return nil
}

func strPtr(v string) *string {
	return &v
}
