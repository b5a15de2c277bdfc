/*
Package metrics provides Prometheus metrics collection and exposition, plus
the service's health and readiness endpoints.

Metrics are registered once at package init and exposed over HTTP for
scraping; health/readiness state is tracked separately in a small in-memory
component registry.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  Prometheus Registry (MustRegister at init)               │
	│       │                                                    │
	│  Gauge / Counter / Histogram metrics                      │
	│       │                                                    │
	│  HTTP handler: /metrics (promhttp.Handler)                │
	│       │                                                    │
	│  Scraped by a Prometheus server                            │
	└────────────────────────────────────────────────────────┘

# Metrics catalog

medgenomics_jobs_total{state}:
  - Type: Gauge
  - Description: current job count by lifecycle state
  - Labels: state (queued/running/completed/failed/cancelled/retained_deleted)

medgenomics_stage_duration_seconds{stage, outcome}:
  - Type: Histogram
  - Description: pipeline stage wall-clock duration
  - Labels: stage (admit/format/ids/aml/persist/analyze/finalize), outcome (pass/fail/skip)

medgenomics_ids_score:
  - Type: Histogram
  - Description: distribution of IDS scanner scores across scanned jobs

medgenomics_aml_score:
  - Type: Histogram
  - Description: distribution of AML reconstruction-error scores

medgenomics_artifacts_bytes_total:
  - Type: Counter
  - Description: total ciphertext bytes written to the object store

medgenomics_integrity_failures_total:
  - Type: Counter
  - Description: total object-store integrity check failures on read

medgenomics_queue_depth:
  - Type: Gauge
  - Description: current number of jobs waiting in the pipeline's worker queue

medgenomics_retention_pruned_total:
  - Type: Counter
  - Description: total retained_deleted jobs pruned by the retention sweeper

# Timer helper

Timer wraps time.Now()/time.Since() for observing a duration into a
histogram once an operation completes:

	timer := metrics.NewTimer()
	// ... do work ...
	timer.ObserveDuration(someHistogram)
	timer.ObserveDurationVec(metrics.StageDuration, "format", "pass")

# Health and readiness

RegisterComponent/UpdateComponent track named components (e.g. "store",
"metadb", "model") with a healthy flag and message. GetHealth aggregates
every registered component; GetReadiness additionally requires every
component in a fixed critical set to be present and healthy. HealthHandler,
ReadyHandler, and LivenessHandler expose these as JSON HTTP endpoints
returning 200/503 accordingly.

# Collector

Collector polls a JobLister (satisfied by *pkg/registry.Registry) on a
ticker and republishes the per-state job counts as medgenomics_jobs_total
gauge values, so the count stays current even for jobs that never emit an
explicit metrics update.

# Integration points

This package integrates with:

  - pkg/pipeline: records per-stage duration and outcome, queue depth, score distributions, and artifact bytes written
  - pkg/store: records integrity failures
  - pkg/retention: tracks pruned-job counts
  - pkg/registry (via Collector): reports per-state job gauges
  - Prometheus: scrapes /metrics
*/
package metrics
