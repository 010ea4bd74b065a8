package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Total number of quiz sessions started",
		},
	)

	sessionsResumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_resumed_total",
			Help: "Total number of in-progress sessions restored from a snapshot",
		},
	)

	sessionTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_session_timeouts_total",
			Help: "Total number of sessions ended by the clock",
		},
	)

	snapshotsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_snapshots_discarded_total",
			Help: "Total number of stored snapshots dropped as corrupt",
		},
	)

	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_submissions_total",
			Help: "Total number of attempt submissions",
		},
		[]string{"status"}, // success/failure
	)

	submissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_submission_duration_seconds",
			Help:    "Time spent submitting attempts to the recorder, retries included",
			Buckets: prometheus.DefBuckets,
		},
	)

	liveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_live_sessions_current",
			Help: "Current number of sessions held open by at least one connection",
		},
	)
)
