/*
Package log provides structured logging via zerolog.

The log package wraps zerolog to provide JSON or console-formatted logging
with component-specific child loggers, a configurable level, and a handful
of package-level helpers for the common case of a one-line message with no
extra fields.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  Global Logger (zerolog.Logger, set by log.Init)          │
	│       │                                                    │
	│  Configuration: Level, JSONOutput, Output                 │
	│       │                                                    │
	│  Child loggers: WithComponent / WithJobID / WithStage      │
	│       │                                                    │
	│  Output: JSON (production) or console (development)       │
	└────────────────────────────────────────────────────────┘

# Log levels

  - Debug: verbose detail, development/troubleshooting only
  - Info: default production level
  - Warn: conditions that may need attention but aren't failures
  - Error: failed operations that need investigation
  - Fatal: unrecoverable startup errors; logs then calls os.Exit(1)

# Usage

Initializing the logger:

	import "github.com/secureai/medgenomics/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("intake service starting")
	log.Warn("AML model not configured, scanner will skip")
	log.Error("failed to open object store")

Structured logging via the global Logger:

	log.Logger.Error().
		Err(err).
		Str("job_id", jobID).
		Msg("stage failed")

Component and job-scoped child loggers:

	pipelineLog := log.WithComponent("pipeline")
	pipelineLog.Info().Msg("worker pool started")

	jobLog := log.WithJobID(jobID)
	jobLog.Info().Str("stage", "ids").Msg("stage passed")

	stageLog := log.WithStage("persist")
	stageLog.Error().Err(err).Msg("failed to write artifact")

# Integration points

This package integrates with:

  - pkg/pipeline: logs stage execution and job outcomes
  - pkg/retention: logs artifact expiry sweeps
  - pkg/registry: logs pruned job counts
  - pkg/intake: logs submissions rejected because the queue is full
*/
package log
