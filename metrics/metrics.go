// Package metrics exposes Prometheus collectors for the progression engine.
// Collectors are registered via promauto and served from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedeemDuration tracks the latency of redemption attempts.
	RedeemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "reward_redeem_duration_seconds",
			Help: "Duration of reward redemption attempts in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
			},
		},
		[]string{"status"}, // success, rejected, failed
	)

	// PointsAwarded counts points granted, by source.
	PointsAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainee_points_awarded_total",
			Help: "Total points awarded to trainees, labeled by source",
		},
		[]string{"source"},
	)

	// LevelUps counts upward level transitions, by level reached.
	LevelUps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainee_level_ups_total",
			Help: "Total level-up events, labeled by the level reached",
		},
		[]string{"level"},
	)
)

// RecordRedeemDuration records the duration of a redemption attempt.
func RecordRedeemDuration(status string, seconds float64) {
	RedeemDuration.WithLabelValues(status).Observe(seconds)
}

// RecordPointsAwarded records a positive point grant.
func RecordPointsAwarded(source string, points int) {
	PointsAwarded.WithLabelValues(source).Add(float64(points))
}

// RecordLevelUp records an upward level transition.
func RecordLevelUp(level string) {
	LevelUps.WithLabelValues(level).Inc()
}
