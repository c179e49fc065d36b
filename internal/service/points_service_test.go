package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
	"github.com/noah-isme/cafe-roster-api/pkg/jobs"
)

type pointsRepoStub struct {
	recorded []models.PointsEvent
	err      error
}

func (r *pointsRepoStub) Record(ctx context.Context, event *models.PointsEvent) error {
	if r.err != nil {
		return r.err
	}
	r.recorded = append(r.recorded, *event)
	return nil
}

func (r *pointsRepoStub) ListByStaff(ctx context.Context, staffID string, limit int) ([]models.PointsEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []models.PointsEvent
	for _, e := range r.recorded {
		if e.StaffID == staffID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestPointsServiceHandle(t *testing.T) {
	repo := &pointsRepoStub{}
	svc := NewPointsService(repo, NewMetricsService(), zap.NewNop())
	event := models.PointsEvent{ID: "evt-1", StaffID: "s1", Points: 50, Reason: "Early clock-in", Source: models.PointsSourceClock}

	require.NoError(t, svc.Handle(context.Background(), jobs.Job[models.PointsEvent]{Payload: event}))
	require.Len(t, repo.recorded, 1)
	assert.Equal(t, "evt-1", repo.recorded[0].ID)

	history, err := svc.History(context.Background(), "s1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	history, err = svc.History(context.Background(), "s2", 10)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestPointsServiceHandleErrors(t *testing.T) {
	repo := &pointsRepoStub{err: sql.ErrNoRows}
	svc := NewPointsService(repo, nil, nil)
	job := jobs.Job[models.PointsEvent]{Payload: models.PointsEvent{ID: "evt-1", StaffID: "ghost", Points: 20}}

	assert.NoError(t, svc.Handle(context.Background(), job))

	repo.err = errors.New("connection reset")
	assert.Error(t, svc.Handle(context.Background(), job))

	_, err := svc.History(context.Background(), "s1", 10)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestPointsQueueDeliversClockAwards(t *testing.T) {
	repo := &pointsRepoStub{}
	svc := NewPointsService(repo, nil, nil)
	delivered := make(chan struct{}, 1)
	queue := jobs.NewQueue("points", func(ctx context.Context, job jobs.Job[models.PointsEvent]) error {
		err := svc.Handle(ctx, job)
		delivered <- struct{}{}
		return err
	}, jobs.QueueConfig{Workers: 1})
	queue.Start(context.Background())
	defer queue.Stop()

	f := newClockFixture(t)
	f.svc.points = queue
	f.roster("s1", at("2025-03-04", "00:00:00"), "07:00", "12:00")
	f.now = at("2025-03-04", "06:40:00")

	_, err := f.svc.ClockIn(context.Background(), ClockRequest{StaffID: "s1"})
	require.NoError(t, err)
	<-delivered
	require.Len(t, repo.recorded, 1)
	assert.Equal(t, EarlyPoints, repo.recorded[0].Points)
	assert.Equal(t, "Early clock-in", repo.recorded[0].Reason)
}
