package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCacheRepo struct{ memoryCacheRepo }

func (brokenCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}

func TestCacheServiceCountsLookupsPerCache(t *testing.T) {
	metrics := NewMetricsService()
	repo := newMemoryCacheRepo()
	roster := NewCacheService("roster", repo, metrics, 0, nil, true)
	parse := NewCacheService("rule_parse", repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var week map[string]int
	hit, err := roster.Get(ctx, "cafe-roster:roster-week:2025-03-03", &week)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, roster.Set(ctx, "cafe-roster:roster-week:2025-03-03", map[string]int{"shifts": 12}, 0))
	hit, err = roster.Get(ctx, "cafe-roster:roster-week:2025-03-03", &week)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 12, week["shifts"])

	_, err = parse.Get(ctx, "cafe-roster:rule-parse:abc", &week)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("roster", cacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("roster", cacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("rule_parse", cacheMiss)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("rule_parse", cacheHit)))
}

func TestCacheServiceReportsBackendErrors(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService("roster", &brokenCacheRepo{memoryCacheRepo{items: map[string][]byte{}}}, metrics, 0, nil, true)

	var dest map[string]int
	hit, err := svc.Get(context.Background(), "k", &dest)
	assert.False(t, hit)
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("roster", cacheError)))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService("roster", repo, nil, 0, nil, false)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", 1, 0))
	assert.Empty(t, repo.items)

	var dest int
	hit, err := svc.Get(ctx, "k", &dest)
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, svc.Invalidate(ctx, "k"))
	assert.Empty(t, repo.deleted)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}
