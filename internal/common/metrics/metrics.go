package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_turns_completed_total",
			Help: "Total number of turns completed successfully",
		},
		[]string{"backend"},
	)

	TurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_turns_failed_total",
			Help: "Total number of turns that ended in the error state",
		},
		[]string{"backend", "stage"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of each pipeline stage in seconds",
		},
		[]string{"stage"},
	)

	TurnsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_turns_active",
			Help: "Number of turns currently in flight",
		},
	)

	ResolutionMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_entity_resolution_misses_total",
			Help: "Entity mentions that resolved to zero identifiers",
		},
	)
)
