package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargeguard_detection_runs_total",
		Help: "Total number of detection runs, labelled by outcome.",
	}, []string{"status"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chargeguard_detection_run_duration_seconds",
		Help:    "Wall time of a full detection run.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chargeguard_detection_pass_duration_seconds",
		Help:    "Evaluation time of a single detection pass.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"pass"})

	PassFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargeguard_detection_pass_failures_total",
		Help: "Total number of detection passes that failed inside a run.",
	}, []string{"pass"})

	FlaggedSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chargeguard_detection_flagged_sessions",
		Help: "Sessions flagged by each pass in the latest run.",
	}, []string{"pass"})

	VerdictWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargeguard_verdict_writes_total",
		Help: "Verdict rows written, labelled by pass and kind (inserted, updated).",
	}, []string{"pass", "kind"})

	SessionsScanned = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chargeguard_detection_sessions_scanned",
		Help: "Sessions read by the latest run.",
	})

	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargeguard_geocode_requests_total",
		Help: "Geocoder lookups, labelled by result (found, not_found, skipped, error).",
	}, []string{"result"})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chargeguard_ws_clients",
		Help: "Connected run feed subscribers.",
	})
)
