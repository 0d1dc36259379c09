// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package metrics provides Prometheus instrumentation for the pipeline:
// batch job outcomes and durations, promotion and rollback counts, quality
// gauges, registry breaker trips, and API latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch job metrics
	BatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketry_batch_runs_total",
			Help: "Total batch job executions by job type and outcome",
		},
		[]string{"job_type", "outcome"}, // outcome: "success", "error", "empty"
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basketry_batch_duration_seconds",
			Help:    "Wall-clock duration of batch jobs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s .. ~3.4m
		},
		[]string{"job_type"},
	)

	BatchRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "basketry_batch_records",
			Help: "Recommendation records produced by the last batch per job type",
		},
		[]string{"job_type"},
	)

	// Version lifecycle metrics
	Promotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basketry_promotions_total",
			Help: "Total version promotions",
		},
	)

	Rollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basketry_rollbacks_total",
			Help: "Total version rollbacks",
		},
	)

	// Quality gauges, updated after validation of each batch
	QualityAvgScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "basketry_quality_avg_score",
			Help: "Average item score of the last validated batch",
		},
		[]string{"job_type"},
	)

	QualityCoverage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "basketry_quality_coverage",
			Help: "Catalog coverage of the last validated batch",
		},
		[]string{"job_type"},
	)

	QualityDiversity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "basketry_quality_diversity",
			Help: "Consequent diversity of the last validated batch",
		},
		[]string{"job_type"},
	)

	// Cache metrics
	HotCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basketry_hot_cache_hits_total",
			Help: "Recommendation reads served from the hot cache",
		},
	)

	HotCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basketry_hot_cache_misses_total",
			Help: "Recommendation reads that fell through to the repository",
		},
	)

	// API metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basketry_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Trigger metrics
	TriggerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketry_trigger_messages_total",
			Help: "Batch trigger messages consumed by job type and outcome",
		},
		[]string{"job_type", "outcome"},
	)
)

// ObserveBatch records one batch execution.
func ObserveBatch(jobType, outcome string, start time.Time, records int) {
	BatchRuns.WithLabelValues(jobType, outcome).Inc()
	BatchDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
	if outcome != "error" {
		BatchRecords.WithLabelValues(jobType).Set(float64(records))
	}
}

// ObserveQuality publishes the quality gauges for one validated batch.
func ObserveQuality(jobType string, avgScore, coverage, diversity float64) {
	QualityAvgScore.WithLabelValues(jobType).Set(avgScore)
	QualityCoverage.WithLabelValues(jobType).Set(coverage)
	QualityDiversity.WithLabelValues(jobType).Set(diversity)
}
