package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
	"github.com/noah-isme/cafe-roster-api/pkg/export"
	"github.com/noah-isme/cafe-roster-api/pkg/storage"
)

type rosterWeekReader interface {
	GetWeek(ctx context.Context, weekStart string) (*models.RosterWeek, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	MaxAge    time.Duration
}

// ExportFile is an opened export ready to stream.
type ExportFile struct {
	File        *os.File
	Name        string
	ContentType string
}

// ExportService renders roster weeks to files and issues signed download links.
type ExportService struct {
	roster    rosterWeekReader
	storage   fileStorage
	renderers map[string]export.Renderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. CSV and PDF are used when no renderers are given.
func NewExportService(roster rosterWeekReader, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter()}
	}
	byFormat := make(map[string]export.Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Format()] = r
	}
	return &ExportService{
		roster:    roster,
		storage:   files,
		renderers: byFormat,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Export renders a stored week and returns its signed download link.
func (s *ExportService) Export(ctx context.Context, weekStart, format string) (*models.RosterExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	week, err := s.roster.GetWeek(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(rosterTable(week))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster export")
	}

	id := uuid.NewString()
	filename := fmt.Sprintf("roster_%s_%s.%s", week.WeekStart.Format(WeekLayout), id[:8], format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store roster export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("roster exported",
		zap.String("export_id", id),
		zap.String("week_start", week.WeekStart.Format(WeekLayout)),
		zap.String("format", format))
	return &models.RosterExport{
		ID:        id,
		WeekStart: week.WeekStart,
		Format:    format,
		Path:      relPath,
		URL:       prefix + "/roster/exports/download?token=" + url.QueryEscape(token),
		ExpiresAt: expiresAt,
	}, nil
}

// Download resolves a signed token to the stored file.
func (s *ExportService) Download(token string) (*ExportFile, error) {
	_, relPath, err := s.signer.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "download link is invalid or expired")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	name := filepath.Base(relPath)
	contentType := "application/octet-stream"
	if r, ok := s.renderers[strings.TrimPrefix(filepath.Ext(name), ".")]; ok {
		contentType = r.ContentType()
	}
	return &ExportFile{File: file, Name: name, ContentType: contentType}, nil
}

// Cleanup removes exports older than maxAge, or the configured age when maxAge is not positive.
func (s *ExportService) Cleanup(maxAge time.Duration) ([]string, error) {
	if maxAge <= 0 {
		maxAge = s.cfg.MaxAge
	}
	removed, err := s.storage.CleanupOlderThan(maxAge)
	if err != nil {
		return removed, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired roster exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func rosterTable(week *models.RosterWeek) export.Table {
	status := "Draft"
	if week.IsPublished {
		status = "Published"
	}
	table := export.Table{
		Title:    "Roster week of " + week.WeekStart.Format("Mon 2 Jan 2006"),
		Subtitle: fmt.Sprintf("%s, %d shifts, %d unfilled", status, len(week.Shifts), week.Unfilled),
		Headers:  []string{"Day", "Date", "Shift", "Start", "End", "Role", "Keys", "Staff", "Hours"},
	}
	for _, shift := range week.Shifts {
		staff := "UNFILLED"
		if shift.StaffName != nil && *shift.StaffName != "" {
			staff = *shift.StaffName
		} else if shift.StaffID != nil {
			staff = *shift.StaffID
		}
		keys := ""
		if shift.RequiresKeys {
			keys = "yes"
		}
		role := shift.RoleRequired
		if role == "" {
			role = "any"
		}
		table.Rows = append(table.Rows, []string{
			titleDay(models.DayName(shift.DayOfWeek)),
			week.WeekStart.AddDate(0, 0, shift.DayOfWeek).Format(WeekLayout),
			shift.ShiftType,
			shift.ScheduledStart,
			shift.ScheduledEnd,
			role,
			keys,
			staff,
			fmt.Sprintf("%.2f", shift.Hours()),
		})
	}
	return table
}

func titleDay(day string) string {
	if day == "" {
		return day
	}
	return strings.ToUpper(day[:1]) + day[1:]
}
