package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
)

func TestStaffServiceList(t *testing.T) {
	inactive := staffMember("s3", "Cleo", false, "kitchen")
	inactive.Active = false
	repo := &staffStub{items: []models.Staff{
		staffMember("s1", "Ana", true, "barista"),
		staffMember("s2", "Budi", false, "barista", "floor"),
		inactive,
	}}
	svc := NewStaffService(repo, zap.NewNop())

	staff, pagination, err := svc.List(context.Background(), models.StaffFilter{ActiveOnly: true, Role: " floor "})
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "s2", staff[0].ID)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 50, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)

	staff, _, err = svc.List(context.Background(), models.StaffFilter{Role: "sommelier"})
	require.NoError(t, err)
	assert.NotNil(t, staff)
	assert.Empty(t, staff)
}

func TestStaffServiceGet(t *testing.T) {
	svc := NewStaffService(&staffStub{items: []models.Staff{staffMember("s1", "Ana", true)}}, nil)

	member, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", member.Name)

	_, err = svc.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
