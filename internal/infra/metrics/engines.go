package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(engineLatencySeconds, aiLatencySeconds) }

var engineLatencySeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "recognition_engine_latency_seconds",
		Help:    "Recognition engine call latency, labeled by engine and success.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"engine", "success"},
)

var aiLatencySeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_analysis_latency_seconds",
		Help:    "AI enrichment call latency, labeled by provider and success.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
	[]string{"provider", "success"},
)

func ObserveEngine(engine string, seconds float64, success bool) {
	engineLatencySeconds.WithLabelValues(engine, strconv.FormatBool(success)).Observe(seconds)
}

func ObserveAI(provider string, seconds float64, success bool) {
	aiLatencySeconds.WithLabelValues(provider, strconv.FormatBool(success)).Observe(seconds)
}
