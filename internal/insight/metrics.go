package insight

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReportsTotal counts background improvement report runs.
	// Labels: result (success, error)
	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insightd",
			Subsystem: "reporter",
			Name:      "reports_total",
			Help:      "Total number of background improvement report runs",
		},
		[]string{"result"},
	)

	// ReportDuration tracks how long one report run takes.
	ReportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "insightd",
			Subsystem: "reporter",
			Name:      "report_duration_seconds",
			Help:      "Duration of background improvement report runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// recordReport records the outcome and latency of one report run.
func recordReport(start time.Time, ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	ReportsTotal.WithLabelValues(result).Inc()
	ReportDuration.Observe(time.Since(start).Seconds())
}
