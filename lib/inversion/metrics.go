package inversion

import (
	"github.com/prometheus/client_golang/prometheus"
	"time"
)

var (
	inversionsRequested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tsvd_rank_inversions_total",
			Help: "Total number of rank-k inversions requested.",
		},
	)
	inversionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsvd_rank_inversion_failures_total",
			Help: "Number of rank-k inversions that failed, by error kind.",
		},
		[]string{"kind"},
	)
	decompositionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:                            "tsvd_decomposition_duration_milliseconds",
			Help:                            "Duration of operator decompositions.",
			Buckets:                         prometheus.ExponentialBuckets(1, 4, 10),
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  10,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
	)
	rankDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tsvd_rank_inversion_duration_milliseconds",
			Help:    "Duration of a single rank-k inversion including resolution diagnostics.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	operatorRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tsvd_operator_rows",
			Help: "Number of observation equations in the last decomposed operator.",
		},
	)
	operatorColumns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tsvd_operator_columns",
			Help: "Number of model parameters in the last decomposed operator.",
		},
	)
)

func init() {
	prometheus.MustRegister(inversionsRequested)
	prometheus.MustRegister(inversionFailures)
	prometheus.MustRegister(decompositionDuration)
	prometheus.MustRegister(rankDuration)
	prometheus.MustRegister(operatorRows)
	prometheus.MustRegister(operatorColumns)
}
