package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for HTTP, cache, solver, clock and rule parsing metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	inFlight        prometheus.Gauge
	cacheLatency    *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	solveDuration   *prometheus.HistogramVec
	solveScore      prometheus.Gauge
	solveUnfilled   prometheus.Gauge
	clockEvents     *prometheus.CounterVec
	ruleParses      *prometheus.CounterVec
	pointsDispatch  *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Requests currently being served",
	})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_operation_seconds",
		Help:    "Latency of cache reads and writes",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"cache", "op"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by cache and result (hit, miss, error)",
	}, []string{"cache", "result"})

	solveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roster_solve_duration_seconds",
		Help:    "Wall time spent generating a roster week",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"stop_reason"})

	solveScore := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roster_solve_score",
		Help: "Objective score of the most recent roster generation",
	})

	solveUnfilled := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roster_unfilled_positions",
		Help: "Unfilled required positions in the most recent roster generation",
	})

	clockEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clock_events_total",
		Help: "Clock events processed by outcome",
	}, []string{"event", "outcome"})

	ruleParses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rule_parse_total",
		Help: "Free-text rule parse attempts",
	}, []string{"backend", "success"})

	pointsDispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "points_dispatch_total",
		Help: "Points events delivered to the points sink",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, inFlight, cacheLatency, cacheLookups,
		solveDuration, solveScore, solveUnfilled, clockEvents, ruleParses, pointsDispatch, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		inFlight:        inFlight,
		cacheLatency:    cacheLatency,
		cacheLookups:    cacheLookups,
		solveDuration:   solveDuration,
		solveScore:      solveScore,
		solveUnfilled:   solveUnfilled,
		clockEvents:     clockEvents,
		ruleParses:      ruleParses,
		pointsDispatch:  pointsDispatch,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// TrackInFlight adjusts the in-flight request gauge by delta.
func (m *MetricsService) TrackInFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}

// RecordCacheLookup counts a read on the named cache. result is hit, miss or error.
func (m *MetricsService) RecordCacheLookup(cache, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues(cache, "get").Observe(duration.Seconds())
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveCacheWrite tracks a write on the named cache.
func (m *MetricsService) ObserveCacheWrite(cache string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues(cache, "set").Observe(duration.Seconds())
}

// ObserveSolve records one roster generation.
func (m *MetricsService) ObserveSolve(stopReason string, duration time.Duration, score float64, unfilled int) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(stopReason).Observe(duration.Seconds())
	m.solveScore.Set(score)
	m.solveUnfilled.Set(float64(unfilled))
}

// RecordClockEvent counts a clock-in or clock-out by outcome.
func (m *MetricsService) RecordClockEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.clockEvents.WithLabelValues(event, outcome).Inc()
}

// RecordRuleParse counts a parse attempt.
func (m *MetricsService) RecordRuleParse(backend string, success bool) {
	if m == nil {
		return
	}
	m.ruleParses.WithLabelValues(backend, fmt.Sprintf("%t", success)).Inc()
}

// RecordPointsDispatch counts a points sink delivery result.
func (m *MetricsService) RecordPointsDispatch(result string) {
	if m == nil {
		return
	}
	m.pointsDispatch.WithLabelValues(result).Inc()
}
