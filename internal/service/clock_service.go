package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/repository"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
)

// Punctuality bands in minutes relative to the rostered start.
const (
	EarlyThresholdMinutes    = -5
	OnTimeThresholdMinutes   = 5
	LateApprovalAfterMinutes = 15
	ClockOutVarianceMinutes  = 60

	EarlyPoints  = 50
	OnTimePoints = 20

	UnscheduledReason = "Unscheduled clock-in"
)

type clockRecordRepository interface {
	Create(ctx context.Context, record *models.ClockRecord) error
	FindByID(ctx context.Context, id string) (*models.ClockRecord, error)
	FindOpenByStaff(ctx context.Context, staffID string) (*models.ClockRecord, error)
	Close(ctx context.Context, id string, update models.ClockOutUpdate) (*models.ClockRecord, error)
	Approve(ctx context.Context, id, approver string, at time.Time) (*models.ClockRecord, error)
	List(ctx context.Context, filter models.ClockRecordFilter) ([]models.ClockRecord, int, error)
	FlagStale(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

type publishedShiftFinder interface {
	ListPublishedForStaffDay(ctx context.Context, staffID string, weekStart time.Time, day int) ([]models.RosterShift, error)
}

type pointsDispatcher interface {
	Enqueue(event models.PointsEvent) error
}

// ClockRequest identifies who is clocking and from where.
type ClockRequest struct {
	StaffID  string  `json:"staff_id"`
	Location *string `json:"location"`
}

// ClockRecordQuery filters record listings.
type ClockRecordQuery struct {
	StaffID          string `form:"staff_id"`
	RequiresApproval *bool  `form:"requires_approval"`
	OpenOnly         bool   `form:"open_only"`
	Page             int    `form:"page"`
	PageSize         int    `form:"page_size"`
}

// ClockServiceConfig tunes the clock processor.
type ClockServiceConfig struct {
	Location   *time.Location
	StaleAfter time.Duration
}

// ClockService scores clock-ins against the published roster and tracks approval.
type ClockService struct {
	records clockRecordRepository
	shifts  publishedShiftFinder
	staff   staffReader
	points  pointsDispatcher
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ClockServiceConfig
	now     func() time.Time
}

// NewClockService constructs the processor. Times are read in cfg.Location, truncated to the minute.
func NewClockService(records clockRecordRepository, shifts publishedShiftFinder, staff staffReader, points pointsDispatcher, metrics *MetricsService, logger *zap.Logger, cfg ClockServiceConfig) *ClockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 16 * time.Hour
	}
	return &ClockService{
		records: records,
		shifts:  shifts,
		staff:   staff,
		points:  points,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Punctuality is the scored outcome of a clock-in.
type Punctuality struct {
	Outcome          string
	Points           int
	VarianceReason   *string
	RequiresApproval bool
}

// ScorePunctuality applies the punctuality table to minutes after the rostered start.
func ScorePunctuality(minutesDiff int) Punctuality {
	switch {
	case minutesDiff <= EarlyThresholdMinutes:
		return Punctuality{Outcome: "early", Points: EarlyPoints}
	case minutesDiff <= OnTimeThresholdMinutes:
		return Punctuality{Outcome: "on_time", Points: OnTimePoints}
	}
	reason := fmt.Sprintf("Late by %d minutes", minutesDiff)
	if minutesDiff <= LateApprovalAfterMinutes {
		return Punctuality{Outcome: "late", VarianceReason: &reason}
	}
	return Punctuality{Outcome: "very_late", VarianceReason: &reason, RequiresApproval: true}
}

// ClockIn opens a session. A second open session for the same staff member is rejected.
func (s *ClockService) ClockIn(ctx context.Context, req ClockRequest) (*models.ClockRecord, error) {
	staffID := strings.TrimSpace(req.StaffID)
	if err := s.ensureActiveStaff(ctx, staffID); err != nil {
		return nil, err
	}
	if _, err := s.records.FindOpenByStaff(ctx, staffID); err == nil {
		s.metrics.RecordClockEvent("clock_in", "rejected")
		return nil, appErrors.Clone(appErrors.ErrAlreadyClockedIn, "already clocked in")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open clock record")
	}

	now := s.localNow()
	record := &models.ClockRecord{
		ID:              uuid.NewString(),
		StaffID:         staffID,
		ClockInTime:     now,
		ClockInLocation: trimmed(req.Location),
	}

	shift, minutesDiff, err := s.matchShift(ctx, staffID, now)
	if err != nil {
		return nil, err
	}
	var outcome Punctuality
	if shift == nil {
		reason := UnscheduledReason
		outcome = Punctuality{Outcome: "unscheduled", VarianceReason: &reason, RequiresApproval: true}
	} else {
		outcome = ScorePunctuality(minutesDiff)
		record.ShiftID = &shift.ID
		start, end := shift.ScheduledStart, shift.ScheduledEnd
		record.RosteredStart = &start
		record.RosteredEnd = &end
	}
	record.PointsAwarded = outcome.Points
	record.VarianceReason = outcome.VarianceReason
	record.RequiresApproval = outcome.RequiresApproval

	if err := s.records.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrOpenClockRecordExists) {
			s.metrics.RecordClockEvent("clock_in", "rejected")
			return nil, appErrors.Clone(appErrors.ErrAlreadyClockedIn, "already clocked in")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record clock-in")
	}
	s.metrics.RecordClockEvent("clock_in", outcome.Outcome)
	s.logger.Info("staff clocked in",
		zap.String("staff_id", staffID),
		zap.String("outcome", outcome.Outcome),
		zap.Int("points", outcome.Points),
		zap.Bool("requires_approval", outcome.RequiresApproval))

	if outcome.Points > 0 {
		s.awardPoints(staffID, outcome)
	}
	return record, nil
}

// ClockOut closes the open session. Leaving more than an hour away from the
// rostered end raises the approval flag; an existing flag is never cleared.
func (s *ClockService) ClockOut(ctx context.Context, req ClockRequest) (*models.ClockRecord, error) {
	staffID := strings.TrimSpace(req.StaffID)
	if staffID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "staff_id is required")
	}
	open, err := s.records.FindOpenByStaff(ctx, staffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordClockEvent("clock_out", "rejected")
			return nil, appErrors.Clone(appErrors.ErrNotClockedIn, "not currently clocked in")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open clock record")
	}

	now := s.localNow()
	update := models.ClockOutUpdate{ClockOutTime: now, Location: trimmed(req.Location)}
	outcome := "unscheduled"
	if rosteredEnd, ok := s.rosteredEnd(open); ok {
		outcome = "on_time"
		variance := int(now.Sub(rosteredEnd).Minutes())
		if abs(variance) > ClockOutVarianceMinutes {
			outcome = "variance"
			update.RequiresApproval = true
			reason := clockOutReason(variance)
			if open.VarianceReason != nil && *open.VarianceReason != "" {
				reason = *open.VarianceReason + "; " + reason
			}
			update.VarianceReason = &reason
		}
	}

	closed, err := s.records.Close(ctx, open.ID, update)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotClockedIn, "not currently clocked in")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record clock-out")
	}
	s.metrics.RecordClockEvent("clock_out", outcome)
	s.logger.Info("staff clocked out",
		zap.String("staff_id", staffID),
		zap.String("record_id", closed.ID),
		zap.String("outcome", outcome),
		zap.Bool("requires_approval", closed.RequiresApproval))
	return closed, nil
}

// Approve clears the approval flag of a record. It is the only path that lowers the flag.
func (s *ClockService) Approve(ctx context.Context, recordID, approverID string) (*models.ClockRecord, error) {
	if strings.TrimSpace(approverID) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "approver identity required")
	}
	record, err := s.records.Approve(ctx, recordID, approverID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clock record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve clock record")
	}
	s.logger.Info("clock record approved", zap.String("record_id", recordID), zap.String("approved_by", approverID))
	return record, nil
}

// GetRecord returns a single clock record.
func (s *ClockService) GetRecord(ctx context.Context, recordID string) (*models.ClockRecord, error) {
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clock record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clock record")
	}
	return record, nil
}

// ListRecords returns a page of clock records, newest first.
func (s *ClockService) ListRecords(ctx context.Context, query ClockRecordQuery) ([]models.ClockRecord, *models.Pagination, error) {
	page, size := models.NormalizePage(query.Page, query.PageSize)
	records, total, err := s.records.List(ctx, models.ClockRecordFilter{
		StaffID:          strings.TrimSpace(query.StaffID),
		RequiresApproval: query.RequiresApproval,
		OpenOnly:         query.OpenOnly,
		Page:             page,
		PageSize:         size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clock records")
	}
	if records == nil {
		records = []models.ClockRecord{}
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// SweepStale flags sessions left open longer than the configured limit.
func (s *ClockService) SweepStale(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.StaleAfter)
	reason := fmt.Sprintf("No clock-out within %s", s.cfg.StaleAfter)
	flagged, err := s.records.FlagStale(ctx, cutoff, reason)
	if err != nil {
		return 0, err
	}
	if flagged > 0 {
		s.metrics.RecordClockEvent("stale_sweep", "flagged")
		s.logger.Warn("stale clock records flagged", zap.Int64("count", flagged), zap.Time("cutoff", cutoff))
	}
	return flagged, nil
}

// matchShift finds the published shift whose start is closest to the clock-in
// and the minutes after that start. A split day offers several shifts. Shortly
// after midnight the previous trading day's shifts are also considered.
func (s *ClockService) matchShift(ctx context.Context, staffID string, now time.Time) (*models.RosterShift, int, error) {
	var (
		best     *models.RosterShift
		bestDiff int
	)

	try := func(day time.Time, minutesIntoDay int) error {
		shifts, err := s.shifts.ListPublishedForStaffDay(ctx, staffID, WeekOf(day), weekdayIndex(day))
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rostered shift")
		}
		for i := range shifts {
			shift := &shifts[i]
			start, err := models.ParseClock(shift.ScheduledStart)
			if err != nil {
				s.logger.Warn("rostered shift has malformed start", zap.String("shift_id", shift.ID), zap.Error(err))
				continue
			}
			diff := minutesIntoDay - start
			if best == nil || abs(diff) < abs(bestDiff) {
				best, bestDiff = shift, diff
			}
		}
		return nil
	}

	minutes := now.Hour()*60 + now.Minute()
	if err := try(now, minutes); err != nil {
		return nil, 0, err
	}
	if now.Hour() < models.MaxClockHour-24 {
		if err := try(now.AddDate(0, 0, -1), minutes+24*60); err != nil {
			return nil, 0, err
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestDiff, nil
}

// rosteredEnd resolves the absolute rostered end of a session's shift. The
// shift day is the clock-in day or the one before, whichever puts the
// rostered start closer to the clock-in.
func (s *ClockService) rosteredEnd(record *models.ClockRecord) (time.Time, bool) {
	if record.RosteredStart == nil || record.RosteredEnd == nil {
		return time.Time{}, false
	}
	start, err := models.ParseClock(*record.RosteredStart)
	if err != nil {
		return time.Time{}, false
	}
	end, err := models.ParseClock(*record.RosteredEnd)
	if err != nil {
		return time.Time{}, false
	}
	clockIn := record.ClockInTime.In(s.cfg.Location)
	y, m, d := clockIn.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
	prev := day.AddDate(0, 0, -1)
	shiftDay := day
	if absDuration(clockIn.Sub(prev.Add(time.Duration(start)*time.Minute))) < absDuration(clockIn.Sub(day.Add(time.Duration(start)*time.Minute))) {
		shiftDay = prev
	}
	return shiftDay.Add(time.Duration(end) * time.Minute), true
}

func (s *ClockService) awardPoints(staffID string, outcome Punctuality) {
	if s.points == nil {
		return
	}
	reason := "On-time clock-in"
	if outcome.Outcome == "early" {
		reason = "Early clock-in"
	}
	event := models.PointsEvent{
		ID:        uuid.NewString(),
		StaffID:   staffID,
		Points:    outcome.Points,
		Reason:    reason,
		Source:    models.PointsSourceClock,
		CreatedAt: s.now().UTC(),
	}
	if err := s.points.Enqueue(event); err != nil {
		s.metrics.RecordPointsDispatch("dropped")
		s.logger.Error("points event not queued", zap.String("staff_id", staffID), zap.Int("points", event.Points), zap.Error(err))
	}
}

func (s *ClockService) ensureActiveStaff(ctx context.Context, staffID string) error {
	if staffID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "staff_id is required")
	}
	member, err := s.staff.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	if !member.Active {
		return appErrors.Clone(appErrors.ErrForbidden, "staff member is inactive")
	}
	return nil
}

func (s *ClockService) localNow() time.Time {
	return s.now().In(s.cfg.Location).Truncate(time.Minute)
}

func clockOutReason(variance int) string {
	if variance < 0 {
		return fmt.Sprintf("Clocked out %d minutes early", -variance)
	}
	return fmt.Sprintf("Clocked out %d minutes late", variance)
}

func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
