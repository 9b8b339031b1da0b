// Package metrics declares the Prometheus collectors PennyOne exports on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanDuration tracks full scan latency.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pennyone_scan_duration_seconds",
		Help:    "Full scan duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// FilesAnalyzed counts files by outcome: analyzed, reused, partial,
	// failed.
	FilesAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pennyone_files_total",
		Help: "Files processed by outcome",
	}, []string{"outcome"})

	// PingsIngested counts telemetry pings by result: stored, rejected,
	// limited, error.
	PingsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pennyone_pings_total",
		Help: "Telemetry pings by result",
	}, []string{"result"})

	// BroadcastDeliveries counts frames delivered per event kind.
	BroadcastDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pennyone_broadcast_deliveries_total",
		Help: "Relay frames delivered by event kind",
	}, []string{"kind"})

	// Observers is the number of open relay connections.
	Observers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pennyone_observers",
		Help: "Open relay connections",
	})
)

// File outcomes.
const (
	OutcomeAnalyzed = "analyzed"
	OutcomeReused   = "reused"
	OutcomePartial  = "partial"
	OutcomeFailed   = "failed"
)

// Ping results.
const (
	PingStored   = "stored"
	PingRejected = "rejected"
	PingLimited  = "limited"
	PingError    = "error"
)
