package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(documentsProcessedTotal, documentProcessingSeconds) }

var documentsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "documents_processed_total",
		Help: "Total number of documents processed, labeled by terminal status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var documentProcessingSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "document_processing_seconds",
		Help:    "End-to-end pipeline duration per document type.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
	[]string{"document_type"},
)

func IncDocument(status string) {
	documentsProcessedTotal.WithLabelValues(status).Inc()
}

func ObserveProcessing(documentType string, seconds float64) {
	documentProcessingSeconds.WithLabelValues(documentType).Observe(seconds)
}
