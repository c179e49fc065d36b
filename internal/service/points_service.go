package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
	"github.com/noah-isme/cafe-roster-api/pkg/jobs"
)

type pointsRepository interface {
	Record(ctx context.Context, event *models.PointsEvent) error
	ListByStaff(ctx context.Context, staffID string, limit int) ([]models.PointsEvent, error)
}

// PointsService is the sink for points awards. Clock-ins enqueue events and
// the queue's workers deliver them here.
type PointsService struct {
	repo    pointsRepository
	metrics *MetricsService
	logger  *zap.Logger
}

// NewPointsService constructs the sink.
func NewPointsService(repo pointsRepository, metrics *MetricsService, logger *zap.Logger) *PointsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PointsService{repo: repo, metrics: metrics, logger: logger}
}

// Handle satisfies jobs.Handler. Recording is keyed by event id so retries do not double-award.
func (s *PointsService) Handle(ctx context.Context, job jobs.Job[models.PointsEvent]) error {
	event := job.Payload
	err := s.repo.Record(ctx, &event)
	switch {
	case err == nil:
		s.metrics.RecordPointsDispatch("delivered")
		s.logger.Info("points awarded",
			zap.String("staff_id", event.StaffID),
			zap.Int("points", event.Points),
			zap.String("reason", event.Reason))
		return nil
	case errors.Is(err, sql.ErrNoRows):
		// staff row vanished; retrying cannot help
		s.metrics.RecordPointsDispatch("discarded")
		s.logger.Warn("points event for unknown staff discarded", zap.String("staff_id", event.StaffID), zap.String("event_id", event.ID))
		return nil
	default:
		s.metrics.RecordPointsDispatch("failed")
		return err
	}
}

// History returns the latest events for a staff member.
func (s *PointsService) History(ctx context.Context, staffID string, limit int) ([]models.PointsEvent, error) {
	events, err := s.repo.ListByStaff(ctx, staffID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load points history")
	}
	if events == nil {
		events = []models.PointsEvent{}
	}
	return events, nil
}
