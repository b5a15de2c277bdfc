// Package types defines the core data model shared across the intake
// engine: jobs, stage records, artifact references, and deletion proofs.
package types

import "time"

// JobState is the lifecycle state of a Job.
type JobState string

const (
	JobStateQueued          JobState = "queued"
	JobStateRunning         JobState = "running"
	JobStateCompleted       JobState = "completed"
	JobStateFailed          JobState = "failed"
	JobStateCancelled       JobState = "cancelled"
	JobStateRetainedDeleted JobState = "retained_deleted"
)

// Terminal reports whether a state no longer transitions on its own.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled, JobStateRetainedDeleted:
		return true
	default:
		return false
	}
}

// StageOutcome is the result of running a single pipeline stage.
type StageOutcome string

const (
	StageOutcomePass StageOutcome = "pass"
	StageOutcomeFail StageOutcome = "fail"
	StageOutcomeSkip StageOutcome = "skip"
)

// FailureReason is the coarse, stable enum carried on failed stages and on
// the terminal Verdict. Free-form detail strings are for logs only.
type FailureReason string

const (
	ReasonFormatInvalid   FailureReason = "format_invalid"
	ReasonThreatsDetected FailureReason = "threats_detected"
	ReasonAdversarial     FailureReason = "adversarial"
	ReasonTimeout         FailureReason = "timeout"
	ReasonCancelled       FailureReason = "cancelled"
	ReasonStorageError    FailureReason = "storage_error"
	ReasonIntegrityError  FailureReason = "integrity_error"
	ReasonInternal        FailureReason = "internal"
)

// StageName identifies one of the seven fixed pipeline stages.
type StageName string

const (
	StageAdmit    StageName = "admit"
	StageFormat   StageName = "format"
	StageIDS      StageName = "ids"
	StageAML      StageName = "aml"
	StagePersist  StageName = "persist"
	StageAnalyze  StageName = "analyze"
	StageFinalize StageName = "finalize"
)

// Stages is the fixed, ordered stage list run for every job.
var Stages = []StageName{
	StageAdmit, StageFormat, StageIDS, StageAML, StagePersist, StageAnalyze, StageFinalize,
}

// StageRecord is the durable, per-stage summary appended by the executor.
// Detail is a small structured summary; it never contains input bytes.
type StageRecord struct {
	Name       StageName
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    StageOutcome
	Detail     StageDetail
}

// Duration returns the wall-clock time spent in the stage.
func (r StageRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// StageDetail is a tagged union over the per-stage detail shapes. At most
// one of the typed fields is populated, matching r.Name.
type StageDetail struct {
	Admit   *AdmitDetail   `json:",omitempty"`
	Format  *FormatDetail  `json:",omitempty"`
	IDS     *IDSDetail     `json:",omitempty"`
	AML     *AMLDetail     `json:",omitempty"`
	Persist *PersistDetail `json:",omitempty"`
	Analyze *AnalyzeDetail `json:",omitempty"`
	Reason  FailureReason  `json:",omitempty"`
	Timeout bool           `json:",omitempty"`
}

// AdmitDetail summarizes the admit stage.
type AdmitDetail struct {
	Filename string
	Size     int64
}

// FormatViolation describes one alphabet/structural violation found by the
// format validator.
type FormatViolation struct {
	Char   byte
	Offset int
	Header string
}

// FormatKind is the recognized genomic file format.
type FormatKind string

const (
	FormatUnknown FormatKind = "unknown_format"
	FormatFASTA   FormatKind = "fasta"
	FormatFASTQ   FormatKind = "fastq"
)

// FormatDetail is the format validator's verdict detail.
type FormatDetail struct {
	Kind       FormatKind
	Records    int
	Violations []FormatViolation
	Truncated  bool
}

// Severity is the IDS pattern severity tier.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CategoryCount pairs an IDS pattern category with its hit count.
type CategoryCount struct {
	Category string
	Count    int
}

// IDSDetail is the IDS scanner's verdict detail. Matched bytes are never
// included.
type IDSDetail struct {
	MatchCount    int
	TopCategories []CategoryCount
	SampleOffsets []int
	Score         float64
}

// AMLDetail is the AML detector's verdict detail.
type AMLDetail struct {
	Score          float64
	Threshold      float64
	FeatureDim     int
	BodyLengthUsed int
}

// PersistDetail is the persist stage's verdict detail.
type PersistDetail struct {
	ContentHash string
	StoredSize  int64
}

// AnalyzeDetail is the analyze stage's verdict detail.
type AnalyzeDetail struct {
	OK      bool
	Summary string
}

// Verdict is the terminal, job-wide outcome summary.
type Verdict struct {
	TerminalState   JobState
	Stages          []StageRecord
	ArtifactRef     *ArtifactRef
	AnalysisOK      bool
	AnalysisResult  string
	IDSScore        float64
	AMLScore        float64
	Reason          FailureReason
	TotalDurationMs int64
}

// ArtifactRef is the durable reference to one encrypted, content-addressed
// payload in the Object Store.
type ArtifactRef struct {
	ContentHash    string
	CiphertextPath string
	OriginalSize   int64
	StoredSize     int64
	AlgorithmTag   string
	KeyFingerprint string
	JobID          string
	CreatedAt      time.Time
}

// DeletionProof is the keyed digest asserting that a specific artifact was
// deleted at a specific time.
type DeletionProof struct {
	JobID               string
	ArtifactContentHash string
	DeletionTimestamp   time.Time
	ProofDigest         string
}

// Job is the full lifecycle record for one uploaded file. The Job Registry
// exclusively owns this record.
type Job struct {
	ID           string
	Filename     string
	InputSize    int64
	ReceivedAt   time.Time
	CompletedAt  time.Time
	DeletionAt   time.Time
	State        JobState
	StageCursor  int
	StageRecords []StageRecord
	Verdict      *Verdict
	ArtifactRef  *ArtifactRef
}

// JobView is a read-only, immutable snapshot of a Job safe to hand to many
// concurrent readers.
type JobView struct {
	ID           string
	Filename     string
	InputSize    int64
	ReceivedAt   time.Time
	CompletedAt  time.Time
	DeletionAt   time.Time
	State        JobState
	StageCursor  int
	StageRecords []StageRecord
	Verdict      *Verdict
	ArtifactRef  *ArtifactRef
}

// Snapshot produces an immutable JobView copy of the Job.
func (j *Job) Snapshot() JobView {
	records := make([]StageRecord, len(j.StageRecords))
	copy(records, j.StageRecords)

	view := JobView{
		ID:           j.ID,
		Filename:     j.Filename,
		InputSize:    j.InputSize,
		ReceivedAt:   j.ReceivedAt,
		CompletedAt:  j.CompletedAt,
		DeletionAt:   j.DeletionAt,
		State:        j.State,
		StageCursor:  j.StageCursor,
		StageRecords: records,
	}
	if j.Verdict != nil {
		v := *j.Verdict
		view.Verdict = &v
	}
	if j.ArtifactRef != nil {
		a := *j.ArtifactRef
		view.ArtifactRef = &a
	}
	return view
}
