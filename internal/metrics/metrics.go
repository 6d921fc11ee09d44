package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psr_dashboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "psr_dashboard_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upstream feeds
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psr_dashboard_fetch_requests_total",
			Help: "Total number of upstream feed requests, one per attempt",
		},
		[]string{"feed", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "psr_dashboard_fetch_duration_seconds",
			Help:    "Duration of upstream feed fetches including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"feed"},
	)

	// Refresh cycle
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psr_dashboard_refresh_total",
			Help: "Total number of dashboard refreshes",
		},
		[]string{"status"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "psr_dashboard_refresh_duration_seconds",
			Help:    "Duration of dashboard refreshes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
	)

	LastSuccessfulRefresh = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "psr_dashboard_last_successful_refresh_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		},
	)

	// Estimates of the latest refresh
	EstimatedEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "psr_dashboard_estimated_events",
			Help: "Number of estimated protected events in the latest refresh",
		},
		[]string{"funder", "reason"},
	)

	EstimatedLamports = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "psr_dashboard_estimated_lamports",
			Help: "Sum of estimated protected event amounts in the latest refresh",
		},
		[]string{"funder"},
	)

	// Bonds of the latest refresh
	FundedBonds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "psr_dashboard_funded_bonds",
			Help: "Number of validator bonds with a positive effective amount",
		},
	)

	StakeLamports = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "psr_dashboard_stake_lamports",
			Help: "Marinade stake of the listed validators, total and protected by bonds",
		},
		[]string{"kind"},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records HTTP metrics labelled with the mux route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordFetchAttempt records one upstream request attempt.
func RecordFetchAttempt(feed string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	FetchRequestsTotal.WithLabelValues(feed, status).Inc()
}

// RecordFetch records the total duration of a fetch including retries.
func RecordFetch(feed string, duration time.Duration) {
	FetchDuration.WithLabelValues(feed).Observe(duration.Seconds())
}

// RecordRefresh records the outcome of one dashboard refresh.
func RecordRefresh(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	} else {
		LastSuccessfulRefresh.SetToCurrentTime()
	}
	RefreshTotal.WithLabelValues(status).Inc()
	RefreshDuration.Observe(duration.Seconds())
}

// SetEstimates replaces the estimate gauges with the totals of the latest refresh.
func SetEstimates(eventsByFunderAndReason map[[2]string]int, lamportsByFunder map[string]float64) {
	EstimatedEvents.Reset()
	for key, count := range eventsByFunderAndReason {
		EstimatedEvents.WithLabelValues(key[0], key[1]).Set(float64(count))
	}
	EstimatedLamports.Reset()
	for funder, lamports := range lamportsByFunder {
		EstimatedLamports.WithLabelValues(funder).Set(lamports)
	}
}

// SetBonds publishes the bond totals of the latest refresh.
func SetBonds(fundedBonds int, protectedLamports, marinadeLamports float64) {
	FundedBonds.Set(float64(fundedBonds))
	StakeLamports.WithLabelValues("protected").Set(protectedLamports)
	StakeLamports.WithLabelValues("marinade").Set(marinadeLamports)
}
