package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/service"
	appErrors "github.com/noah-isme/cafe-roster-api/pkg/errors"
)

type staffServiceMock struct {
	filter models.StaffFilter
}

func (m *staffServiceMock) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, *models.Pagination, error) {
	m.filter = filter
	return []models.Staff{{ID: "s1", Name: "Ana"}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

func (m *staffServiceMock) Get(ctx context.Context, id string) (*models.Staff, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "staff not found")
}

type pointsHistoryMock struct{}

func (pointsHistoryMock) History(ctx context.Context, staffID string, limit int) ([]models.PointsEvent, error) {
	return []models.PointsEvent{{StaffID: staffID, Points: 50}}, nil
}

type availabilityServiceMock struct {
	upserted service.AvailabilityInput
	bulk     service.BulkAvailabilityRequest
}

func (m *availabilityServiceMock) List(ctx context.Context, staffID string) ([]models.AvailabilitySlot, error) {
	return []models.AvailabilitySlot{}, nil
}

func (m *availabilityServiceMock) Upsert(ctx context.Context, staffID string, input service.AvailabilityInput) ([]models.AvailabilitySlot, error) {
	m.upserted = input
	return []models.AvailabilitySlot{{StaffID: staffID, HourStart: input.HourStart, HourEnd: input.HourEnd}}, nil
}

func (m *availabilityServiceMock) Bulk(ctx context.Context, staffID string, req service.BulkAvailabilityRequest) ([]models.AvailabilitySlot, error) {
	m.bulk = req
	return nil, appErrors.Clone(appErrors.ErrValidation, "invalid availability payload")
}

func TestStaffListBindsQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &staffServiceMock{}
	h := &StaffHandler{staff: svc, points: pointsHistoryMock{}}
	r := gin.New()
	r.GET("/staff", h.List)
	r.GET("/staff/:id", h.Get)
	r.GET("/staff/:id/points", h.Points)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff?active_only=true&role=barista&page=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.filter.ActiveOnly)
	assert.Equal(t, "barista", svc.filter.Role)
	assert.Equal(t, 2, svc.filter.Page)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff?page=two", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff/ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff/s1/points", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAvailabilityHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &availabilityServiceMock{}
	h := &AvailabilityHandler{service: svc}
	r := gin.New()
	r.GET("/staff/:id/availability", h.List)
	r.POST("/staff/:id/availability", h.Upsert)
	r.PUT("/staff/:id/availability", h.Bulk)

	w := postJSON(r, "/staff/s1/availability", `{"day_of_week":"monday","hour_start":22,"hour_end":26,"status":"unavailable"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 26, svc.upserted.HourEnd)

	w = postJSON(r, "/staff/s1/availability", `{"day_of_week":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/staff/s1/availability", bytes.NewBufferString(`{"slots":[]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff/s1/availability", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestReadyReportsFailingChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	r := gin.New()
	r.GET("/ready", h.Ready)
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Prometheus)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")
}
