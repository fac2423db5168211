package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search service and pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Name:      "search_requests_total",
			Help:      "Total number of requests to search services",
		},
		[]string{"service", "op", "status"},
	)

	SearchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "idxmigrate",
			Name:      "search_request_duration_seconds",
			Help:      "Search service request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "op"},
	)

	PagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Name:      "pages_total",
			Help:      "Extracted pages by outcome",
		},
		[]string{"index", "status"}, // "ok" / "error"
	)

	DocumentsExportedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Name:      "documents_exported_total",
			Help:      "Documents read from the source service",
		},
		[]string{"index"},
	)

	GeoRewritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Name:      "geo_rewrites_total",
			Help:      "Structured geo values rewritten",
		},
		[]string{"kind"}, // "point" / "empty"
	)

	StageOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Name:      "stage_operations_total",
			Help:      "Staging store operations",
		},
		[]string{"driver", "op", "status"},
	)

	StageBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Name:      "stage_bytes_total",
			Help:      "Bytes written to or read from the staging store",
		},
		[]string{"driver", "op"},
	)

	ImportFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Name:      "import_files_total",
			Help:      "Staged files imported by outcome",
		},
		[]string{"index", "status"}, // "ok" / "partial" / "error"
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Name:      "runs_total",
			Help:      "Completed migration runs by outcome",
		},
		[]string{"outcome"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "idxmigrate",
			Name:      "run_duration_seconds",
			Help:      "Migration run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers search service and pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchRequestDuration)
	prometheus.MustRegister(PagesTotal)
	prometheus.MustRegister(DocumentsExportedTotal)
	prometheus.MustRegister(GeoRewritesTotal)
	prometheus.MustRegister(StageOpsTotal)
	prometheus.MustRegister(StageBytesTotal)
	prometheus.MustRegister(ImportFilesTotal)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	pipelineMetricsRegistered = true
}

// StatusLabel maps an error to the "ok"/"error" label value.
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
