// Package metrics holds the prometheus collectors of the service and the gin
// middleware that feeds the HTTP ones.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "masjidgo"

// Metrics holds every collector. A nil *Metrics is valid and records nothing,
// so components can be built without metrics in tests.
type Metrics struct {
	RequestCounter           *prometheus.CounterVec
	RequestDuration          *prometheus.HistogramVec
	RequestsInFlight         prometheus.Gauge
	GeoQueryDuration         *prometheus.HistogramVec
	CheckinOutcomes          *prometheus.CounterVec
	CheckoutFollowupFailures *prometheus.CounterVec
	AchievementsUnlocked     prometheus.Counter
	JobRuns                  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// so repeated construction does not collide with the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		GeoQueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geo_query_duration_seconds",
				Help:      "Duration of geo index queries",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"kind"},
		),
		CheckinOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkin_outcomes_total",
				Help:      "Check-in and checkout attempts by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		CheckoutFollowupFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkout_followup_failures_total",
				Help:      "Failed post-checkout steps; the visit itself stays closed",
			},
			[]string{"step"},
		),
		AchievementsUnlocked: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "achievements_unlocked_total",
				Help:      "Achievements unlocked",
			},
		),
		JobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Batch job runs by job and result",
			},
			[]string{"job", "result"},
		),
		gatherer: reg,
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveGeoQuery records the time since start under kind.
func (m *Metrics) ObserveGeoQuery(kind string, start time.Time) {
	if m == nil {
		return
	}
	m.GeoQueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CheckinOutcome(op, outcome string) {
	if m == nil {
		return
	}
	m.CheckinOutcomes.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) FollowupFailed(step string) {
	if m == nil {
		return
	}
	m.CheckoutFollowupFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) AchievementUnlocked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AchievementsUnlocked.Add(float64(n))
}

func (m *Metrics) JobRun(job, result string) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
}

// Middleware records request count, latency and in-flight requests. Routes
// are labelled by their registered pattern, not the raw path, to keep label
// cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		m.RequestCounter.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
