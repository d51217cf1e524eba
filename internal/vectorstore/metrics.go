package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsAddedTotal counts documents written to the store.
	// Labels: backend (chromem, qdrant), result (success, error)
	DocumentsAddedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insightd",
			Subsystem: "vectorstore",
			Name:      "documents_added_total",
			Help:      "Total number of documents written to the vector store",
		},
		[]string{"backend", "result"},
	)

	// SearchesTotal counts similarity searches.
	// Labels: backend (chromem, qdrant), result (success, error)
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insightd",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of similarity searches",
		},
		[]string{"backend", "result"},
	)

	// SearchDuration tracks similarity search latency.
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "insightd",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of similarity searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)

// recordAdd records the outcome of an AddDocuments call.
func recordAdd(backend string, count int, err error) {
	result := "success"
	if err != nil {
		result = "error"
		count = 1
	}
	DocumentsAddedTotal.WithLabelValues(backend, result).Add(float64(count))
}

// recordSearch records the outcome and latency of a Search call.
func recordSearch(backend string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	SearchesTotal.WithLabelValues(backend, result).Inc()
	SearchDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
}
