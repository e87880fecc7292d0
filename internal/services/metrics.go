package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	mirrorDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progress_store",
		Subsystem: "mirror",
		Name:      "delivered_total",
		Help:      "Number of mutations mirrored to the remote store.",
	}, []string{"field"})
	mirrorFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progress_store",
		Subsystem: "mirror",
		Name:      "failed_total",
		Help:      "Number of mutations the remote store rejected or did not confirm in time.",
	}, []string{"field", "reason"})
	mirrorLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "progress_store",
		Subsystem: "mirror",
		Name:      "put_duration_seconds",
		Help:      "Duration of remote mirror writes.",
		Buckets:   prometheus.DefBuckets,
	})
	mirrorPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "progress_store",
		Subsystem: "mirror",
		Name:      "pending",
		Help:      "Mutations queued for the remote store.",
	})
)

func init() {
	prometheus.MustRegister(mirrorDelivered, mirrorFailed, mirrorLatency, mirrorPending)
}
