/*
Package types defines the core data structures used throughout the intake
engine.

This package contains the fundamental types shared across the Object Store,
the scanners, the pipeline executor, the Job Registry, and the intake
surface: jobs, stage records, artifact references, and deletion proofs.

# Core Types

Job: the full lifecycle record for one uploaded file, owned exclusively by
the Job Registry.

JobState: typed-string enum (queued, running, completed, failed, cancelled,
retained_deleted).

StageRecord: a durable, append-only summary of one pipeline stage run,
carrying a StageDetail tagged union instead of raw bytes.

ArtifactRef: the reference to one encrypted, content-addressed payload held
by the Object Store.

DeletionProof: the keyed digest proving an artifact was deleted at a given
time.

# Design Patterns

Enumeration Pattern:

	All enums use typed string constants:
	  type JobState string
	  const (
	      JobStateQueued  JobState = "queued"
	      JobStateRunning JobState = "running"
	  )

Snapshot Pattern:

	Job.Snapshot() returns a JobView: a deep copy safe to hand to readers
	without holding the registry's lock.

# Thread Safety

Job is mutated only by the Job Registry under its own lock; all other
callers receive JobView snapshots, which are safe to read concurrently.
*/
package types
