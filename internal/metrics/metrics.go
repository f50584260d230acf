// Package metrics holds the bot's Prometheus collectors and the HTTP
// listener that exposes them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/lovematch/core/logger"
)

var (
	ProfilesCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lovematch_profiles_completed_total",
			Help: "Profiles that finished onboarding",
		},
	)

	MatchSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lovematch_match_searches_total",
			Help: "Match searches by outcome",
		},
		[]string{"result"},
	)

	Alerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lovematch_match_alerts_total",
			Help: "New-match alerts by delivery status",
		},
		[]string{"status"},
	)

	Reveals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lovematch_contact_reveals_total",
			Help: "Contact reveal requests by outcome",
		},
		[]string{"outcome"},
	)

	StoreSaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lovematch_store_save_duration_seconds",
			Help:    "Duration of synchronous profile table flushes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "status"},
	)
)

// ObserveSave records one persister flush.
func ObserveSave(backend string, took time.Duration, err error) {
	if backend == "" {
		backend = "unknown"
	}
	StoreSaveDuration.WithLabelValues(backend, logger.Status(err)).Observe(took.Seconds())
}
