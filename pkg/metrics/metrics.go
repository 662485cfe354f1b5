package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartsales_build_info",
			Help: "Build information of the smartsales pipeline",
		},
		[]string{"version", "commit", "date"},
	)

	PrepareRowsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartsales_prepare_rows_removed_total",
			Help: "Rows removed by each preparation step",
		},
		[]string{"entity", "step"},
	)

	PrepareParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartsales_prepare_parse_failures_total",
			Help: "Fields nulled because they could not be parsed",
		},
		[]string{"entity", "column"},
	)

	PrepareRowsOutput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartsales_prepare_rows_output",
			Help: "Rows in the most recent prepared dataset",
		},
		[]string{"entity"},
	)

	LoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartsales_warehouse_load_duration_seconds",
			Help:    "Duration of warehouse full-replace loads",
			Buckets: prometheus.DefBuckets,
		},
	)

	LoadRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartsales_warehouse_rows_loaded",
			Help: "Rows inserted per table by the most recent load",
		},
		[]string{"table"},
	)

	LoadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartsales_warehouse_load_errors_total",
			Help: "Warehouse loads that were rolled back",
		},
	)

	LoadRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartsales_warehouse_load_retries_total",
			Help: "Warehouse load attempts retried after a transaction conflict",
		},
	)

	CubeRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartsales_cube_rows",
			Help: "Rows in the most recently built cube",
		},
		[]string{"cube"},
	)

	CubeBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartsales_cube_build_duration_seconds",
			Help:    "Duration of cube builds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cube"},
	)
)
