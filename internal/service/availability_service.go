package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
)

type availabilityRepository interface {
	LockStaff(ctx context.Context, exec sqlx.ExtContext, staffID string) error
	ListByStaff(ctx context.Context, exec sqlx.ExtContext, staffID string) ([]models.AvailabilitySlot, error)
	ReplaceDays(ctx context.Context, exec sqlx.ExtContext, staffID string, days []int, slots []models.AvailabilitySlot) error
}

type staffReader interface {
	FindByID(ctx context.Context, id string) (*models.Staff, error)
}

// AvailabilityInput is one availability window. Hours 24 to 26 fall after midnight.
type AvailabilityInput struct {
	DayOfWeek string `json:"day_of_week" validate:"required"`
	HourStart int    `json:"hour_start" validate:"gte=0,lte=25"`
	HourEnd   int    `json:"hour_end" validate:"gte=1,lte=26,gtfield=HourStart"`
	Status    string `json:"status" validate:"required,oneof=available preferred_not unavailable"`
}

// BulkAvailabilityRequest replaces every day it mentions.
type BulkAvailabilityRequest struct {
	Slots []AvailabilityInput `json:"slots" validate:"required,min=1,dive"`
}

// AvailabilityService maintains non-overlapping availability windows per staff member and day.
type AvailabilityService struct {
	repo      availabilityRepository
	staff     staffReader
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(repo availabilityRepository, staff staffReader, tx txProvider, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, staff: staff, tx: tx, validator: validate, logger: logger}
}

// List returns a staff member's windows ordered by day and hour.
func (s *AvailabilityService) List(ctx context.Context, staffID string) ([]models.AvailabilitySlot, error) {
	if err := s.ensureStaff(ctx, staffID); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListByStaff(ctx, nil, staffID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	if slots == nil {
		slots = []models.AvailabilitySlot{}
	}
	return slots, nil
}

// Upsert writes one window, trimming or splitting the existing windows it overlaps.
// It returns the resulting windows of that day. Concurrent writes for the same
// staff member are serialised so neither loses the other's window.
func (s *AvailabilityService) Upsert(ctx context.Context, staffID string, input AvailabilityInput) ([]models.AvailabilitySlot, error) {
	slot, err := s.toSlot(input)
	if err != nil {
		return nil, err
	}
	if err := s.ensureStaff(ctx, staffID); err != nil {
		return nil, err
	}

	var day []models.AvailabilitySlot
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.LockStaff(ctx, tx, staffID); err != nil {
			return err
		}
		existing, err := s.repo.ListByStaff(ctx, tx, staffID)
		if err != nil {
			return err
		}
		for _, row := range existing {
			if row.DayOfWeek == slot.DayOfWeek {
				day = append(day, row)
			}
		}
		day = applyWindow(day, slot)
		return s.repo.ReplaceDays(ctx, tx, staffID, []int{slot.DayOfWeek}, day)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}
	s.logger.Info("availability updated",
		zap.String("staff_id", staffID),
		zap.String("day", models.DayName(slot.DayOfWeek)),
		zap.Int("windows", len(day)))
	return day, nil
}

// Bulk replaces every day present in the request. Later windows win where the request overlaps itself.
func (s *AvailabilityService) Bulk(ctx context.Context, staffID string, req BulkAvailabilityRequest) ([]models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	byDay := map[int][]models.AvailabilitySlot{}
	for i, input := range req.Slots {
		slot, err := s.toSlot(input)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slots[%d]: %s", i, appErrors.FromError(err).Message))
		}
		byDay[slot.DayOfWeek] = applyWindow(byDay[slot.DayOfWeek], slot)
	}
	if err := s.ensureStaff(ctx, staffID); err != nil {
		return nil, err
	}

	days := make([]int, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Ints(days)
	var slots []models.AvailabilitySlot
	for _, day := range days {
		slots = append(slots, byDay[day]...)
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.LockStaff(ctx, tx, staffID); err != nil {
			return err
		}
		return s.repo.ReplaceDays(ctx, tx, staffID, days, slots)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}
	s.logger.Info("availability replaced", zap.String("staff_id", staffID), zap.Ints("days", days))
	return slots, nil
}

func (s *AvailabilityService) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *AvailabilityService) ensureStaff(ctx context.Context, staffID string) error {
	if _, err := s.staff.FindByID(ctx, staffID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	return nil
}

func (s *AvailabilityService) toSlot(input AvailabilityInput) (models.AvailabilitySlot, error) {
	input.Status = strings.ToLower(strings.TrimSpace(input.Status))
	if err := s.validator.Struct(input); err != nil {
		return models.AvailabilitySlot{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability window")
	}
	day, err := models.ParseDay(input.DayOfWeek)
	if err != nil {
		return models.AvailabilitySlot{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return models.AvailabilitySlot{
		DayOfWeek: day,
		HourStart: input.HourStart,
		HourEnd:   input.HourEnd,
		Status:    models.AvailabilityStatus(input.Status),
	}, nil
}

// applyWindow inserts next into the windows of one day. Existing windows lose
// the hours next covers; adjacent windows with the same status are merged.
func applyWindow(day []models.AvailabilitySlot, next models.AvailabilitySlot) []models.AvailabilitySlot {
	out := make([]models.AvailabilitySlot, 0, len(day)+2)
	for _, cur := range day {
		if !cur.Overlaps(next) {
			out = append(out, cur)
			continue
		}
		if cur.HourStart < next.HourStart {
			left := cur
			left.HourEnd = next.HourStart
			out = append(out, left)
		}
		if cur.HourEnd > next.HourEnd {
			right := cur
			right.ID = ""
			right.HourStart = next.HourEnd
			out = append(out, right)
		}
	}
	out = append(out, next)
	sort.SliceStable(out, func(i, j int) bool { return out[i].HourStart < out[j].HourStart })

	merged := out[:0]
	for _, cur := range out {
		if n := len(merged); n > 0 && merged[n-1].Status == cur.Status && merged[n-1].HourEnd == cur.HourStart {
			merged[n-1].HourEnd = cur.HourEnd
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}
