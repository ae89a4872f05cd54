package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scans counts attendance scans by outcome.
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolms",
		Name:      "attendance_scans_total",
		Help:      "Attendance scans by outcome (check_in, check_out, already_completed, out_of_order, not_found, error).",
	}, []string{"outcome"})

	// Notifications counts outbound notification attempts by result.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolms",
		Name:      "notifications_total",
		Help:      "Notification attempts by result (dispatched by the API, sent by the gateway, failed, skipped).",
	}, []string{"result"})

	// MarkCells counts ingested score cells by outcome.
	MarkCells = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolms",
		Name:      "mark_cells_total",
		Help:      "Score cells seen during mark ingestion by outcome (created, updated, invalid, failed).",
	}, []string{"outcome"})

	// IngestDuration observes whole mark ingestion calls.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "schoolms",
		Name:      "mark_ingest_duration_seconds",
		Help:      "Duration of mark ingestion calls.",
		Buckets:   prometheus.DefBuckets,
	})
)
