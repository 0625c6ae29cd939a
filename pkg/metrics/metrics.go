package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	EmailsSent       *prometheus.CounterVec
	EmailsFailed     *prometheus.CounterVec
	DeliveryAttempts prometheus.Counter
	SendDuration     prometheus.Histogram
	ScanDuration     prometheus.Histogram
	ScanRecords      *prometheus.CounterVec
	ScansSkipped     prometheus.Counter
	RepliesHandled   prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in the server and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EmailsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "The total number of automated emails delivered",
		}, []string{"type"}),
		EmailsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_failed_total",
			Help:      "The total number of automated emails that failed after all retries",
		}, []string{"type"}),
		DeliveryAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "The total number of delivery client calls",
		}),
		SendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time taken to deliver one email including retries",
			Buckets:   prometheus.DefBuckets,
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time taken by one due-work scan",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		ScanRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_records_total",
			Help:      "Records handled by due-work scans by outcome",
		}, []string{"outcome"}),
		ScansSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_skipped_total",
			Help:      "Scans skipped because a previous scan was still running",
		}),
		RepliesHandled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_handled_total",
			Help:      "Inbound lead replies that paused automation",
		}),
	}
}
