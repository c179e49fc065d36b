package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sweeperStub struct {
	calls int
	err   error
}

func (s *sweeperStub) SweepStale(ctx context.Context) (int64, error) {
	s.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep without deadline")
	}
	return 2, s.err
}

type cleanerStub struct {
	maxAge time.Duration
	err    error
}

func (c *cleanerStub) Cleanup(maxAge time.Duration) ([]string, error) {
	c.maxAge = maxAge
	return []string{"old.csv"}, c.err
}

func TestCronServiceRunsJobs(t *testing.T) {
	sweeper := &sweeperStub{}
	cleaner := &cleanerStub{}
	svc := NewCronService(sweeper, cleaner, CronConfig{ExportMaxAge: 48 * time.Hour}, zap.NewNop())

	svc.SweepStaleClockIns()
	svc.CleanupExports()
	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 48*time.Hour, cleaner.maxAge)

	sweeper.err = errors.New("db down")
	cleaner.err = errors.New("disk full")
	svc.SweepStaleClockIns()
	svc.CleanupExports()
	assert.Equal(t, 2, sweeper.calls)
}

func TestCronServiceSchedules(t *testing.T) {
	svc := NewCronService(&sweeperStub{}, &cleanerStub{}, CronConfig{
		ClockSweepSchedule:    "0 */15 * * * *",
		ExportCleanupSchedule: "0 0 3 * * *",
	}, nil)
	require.NoError(t, svc.Start())
	assert.Len(t, svc.cron.Entries(), 2)
	svc.Stop()

	bad := NewCronService(&sweeperStub{}, nil, CronConfig{ClockSweepSchedule: "every now and then"}, nil)
	assert.Error(t, bad.Start())
}
