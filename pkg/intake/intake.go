package intake

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/secureai/medgenomics/pkg/config"
	"github.com/secureai/medgenomics/pkg/log"
	"github.com/secureai/medgenomics/pkg/pipeline"
	"github.com/secureai/medgenomics/pkg/registry"
	"github.com/secureai/medgenomics/pkg/store"
	"github.com/secureai/medgenomics/pkg/types"
)

// ErrInputTooLarge is returned by Submit when the payload exceeds
// cfg.MaxInputBytes.
type ErrInputTooLarge struct {
	Size, Limit int64
}

func (e *ErrInputTooLarge) Error() string {
	return fmt.Sprintf("intake: input size %d exceeds limit %d", e.Size, e.Limit)
}

// ErrQueueAtCapacity is returned by Submit when admission control rejects
// the job because the executor's queue is full.
type ErrQueueAtCapacity struct{}

func (ErrQueueAtCapacity) Error() string { return "intake: queue is at capacity" }

// ErrEmptyInput is returned by Submit when the payload has zero bytes.
type ErrEmptyInput struct{}

func (ErrEmptyInput) Error() string { return "intake: input is empty" }

// ErrNotReady is returned by Result when the job has not yet reached a
// terminal state, distinguishing "come back later" from "no such job".
type ErrNotReady struct{ JobID string }

func (e *ErrNotReady) Error() string { return fmt.Sprintf("intake: job %s has no verdict yet", e.JobID) }

// Surface is the intake service's external API: submit/status/result/
// proof/cancel, per-process admission control in front of the registry
// and pipeline executor.
type Surface struct {
	cfg      config.Config
	registry *registry.Registry
	executor *pipeline.Executor
	store    *store.Store
}

// New builds a Surface over an already-started Executor.
func New(cfg config.Config, reg *registry.Registry, exec *pipeline.Executor, st *store.Store) *Surface {
	return &Surface{cfg: cfg, registry: reg, executor: exec, store: st}
}

// MaxInputBytes returns the configured submission size limit.
func (s *Surface) MaxInputBytes() int64 {
	return s.cfg.MaxInputBytes
}

// Submit admits a new job: checks size, reserves executor capacity,
// creates the registry entry, and hands it to the executor. Returns the
// new job id.
//
// Capacity is reserved before the registry entry is created so a full
// queue is rejected cleanly with no trace of the submission: if the
// registry write itself then fails, the reservation is released rather
// than left for a task that will never be enqueued.
func (s *Surface) Submit(filename string, plaintext []byte) (string, error) {
	size := int64(len(plaintext))
	if size == 0 {
		return "", ErrEmptyInput{}
	}
	if size > s.cfg.MaxInputBytes {
		return "", &ErrInputTooLarge{Size: size, Limit: s.cfg.MaxInputBytes}
	}

	if !s.executor.TryReserve() {
		log.Warn("rejecting submission: queue at capacity")
		return "", ErrQueueAtCapacity{}
	}

	jobID := uuid.NewString()
	if _, err := s.registry.Create(jobID, filename, size); err != nil {
		s.executor.ReleaseReservation()
		return "", fmt.Errorf("intake: create job: %w", err)
	}

	s.executor.Enqueue(pipeline.Task{JobID: jobID, Filename: filename, Plaintext: plaintext})
	return jobID, nil
}

// Status returns the job's current snapshot.
func (s *Surface) Status(jobID string) (types.JobView, error) {
	return s.registry.Snapshot(jobID)
}

// Result returns the job's terminal verdict. Result on a job that has no
// verdict yet returns *ErrNotReady; an unknown job id returns the
// registry's *registry.ErrNotFound.
func (s *Surface) Result(jobID string) (types.Verdict, error) {
	view, err := s.registry.Snapshot(jobID)
	if err != nil {
		return types.Verdict{}, err
	}
	if view.Verdict == nil {
		return types.Verdict{}, &ErrNotReady{JobID: jobID}
	}
	return *view.Verdict, nil
}

// Proof fetches the job's deletion proof from the object store. Returns
// an error if the artifact has not been deleted.
func (s *Surface) Proof(jobID string) (types.DeletionProof, error) {
	return s.store.Proof(jobID)
}

// Cancel requests cooperative cancellation of a running job.
func (s *Surface) Cancel(jobID string) error {
	return s.registry.Cancel(jobID)
}
