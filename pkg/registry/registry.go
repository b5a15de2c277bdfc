// Package registry implements the in-process Job Registry: a single
// process-wide map of job identifier to job record with safe concurrent
// access, CAS-style state transitions, and bounded fan-out notifications.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/secureai/medgenomics/pkg/events"
	"github.com/secureai/medgenomics/pkg/log"
	"github.com/secureai/medgenomics/pkg/types"
)

// ErrAlreadyExists is returned by Create when the job id is already present.
type ErrAlreadyExists struct{ ID string }

func (e *ErrAlreadyExists) Error() string { return fmt.Sprintf("job %s already exists", e.ID) }

// ErrNotFound is returned when a job id has no registry entry.
type ErrNotFound struct{ ID string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("job %s not found", e.ID) }

// ErrIllegalTransition is returned when a requested state change is not in
// the legal transition set.
type ErrIllegalTransition struct {
	ID       string
	From, To types.JobState
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("job %s: illegal transition %s -> %s", e.ID, e.From, e.To)
}

// legalTransitions is the state machine's edge set (spec.md §4.4).
var legalTransitions = map[types.JobState]map[types.JobState]bool{
	types.JobStateQueued: {
		types.JobStateRunning: true,
	},
	types.JobStateRunning: {
		types.JobStateCompleted: true,
		types.JobStateFailed:    true,
		types.JobStateCancelled: true,
	},
	types.JobStateCompleted: {
		types.JobStateRetainedDeleted: true,
	},
	types.JobStateFailed: {
		types.JobStateRetainedDeleted: true,
	},
	types.JobStateCancelled: {
		types.JobStateRetainedDeleted: true,
	},
}

const subscriberBufferSize = 16

// jobEntry holds one job record plus its subscriber fan-out state. All
// mutation goes through the entry's mutex; the entry is the single-writer
// boundary for its job.
type jobEntry struct {
	mu         sync.Mutex
	job        *types.Job
	subs       map[chan types.JobView]struct{}
	cancelCh   chan struct{}
	cancelOnce sync.Once
	cancelled  bool
}

// Registry is the process-wide Job Registry.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*jobEntry
	broker *events.Broker
}

// New creates an empty Registry. broker may be nil; if non-nil, lifecycle
// transitions publish observability events onto it.
func New(broker *events.Broker) *Registry {
	return &Registry{
		jobs:   make(map[string]*jobEntry),
		broker: broker,
	}
}

func (r *Registry) publish(jobID string, typ events.EventType, msg string, meta map[string]string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		Type:     typ,
		JobID:    jobID,
		Message:  msg,
		Metadata: meta,
	})
}

// Create inserts a new job in the queued state. Fails if id is already
// present.
func (r *Registry) Create(id, filename string, size int64) (types.JobView, error) {
	r.mu.Lock()
	if _, exists := r.jobs[id]; exists {
		r.mu.Unlock()
		return types.JobView{}, &ErrAlreadyExists{ID: id}
	}

	job := &types.Job{
		ID:         id,
		Filename:   filename,
		InputSize:  size,
		ReceivedAt: time.Now(),
		State:      types.JobStateQueued,
	}
	entry := &jobEntry{
		job:      job,
		subs:     make(map[chan types.JobView]struct{}),
		cancelCh: make(chan struct{}),
	}
	r.jobs[id] = entry
	r.mu.Unlock()

	r.publish(id, events.EventJobSubmitted, "job submitted", map[string]string{"filename": filename})
	return job.Snapshot(), nil
}

func (r *Registry) lookup(id string) (*jobEntry, error) {
	r.mu.RLock()
	entry, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}
	return entry, nil
}

// Transition performs an atomic compare-and-swap on a job's state. The
// current state must equal from, and (from, to) must be a legal edge.
func (r *Registry) Transition(id string, from, to types.JobState) (types.JobView, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return types.JobView{}, err
	}

	entry.mu.Lock()
	if entry.job.State != from {
		cur := entry.job.State
		entry.mu.Unlock()
		return types.JobView{}, &ErrIllegalTransition{ID: id, From: cur, To: to}
	}
	if !legalTransitions[from][to] {
		entry.mu.Unlock()
		return types.JobView{}, &ErrIllegalTransition{ID: id, From: from, To: to}
	}

	entry.job.State = to
	if to.Terminal() && to != types.JobStateRetainedDeleted {
		entry.job.CompletedAt = time.Now()
	}
	view := entry.job.Snapshot()
	entry.notifyLocked(view)
	entry.mu.Unlock()

	if to.Terminal() {
		reason := ""
		if entry.job.Verdict != nil {
			reason = string(entry.job.Verdict.Reason)
		}
		r.publish(id, events.EventJobTerminal, "job reached terminal state", map[string]string{
			"state":  string(to),
			"reason": reason,
		})
	}
	return view, nil
}

// AppendStage appends a StageRecord to a running job and advances the
// stage cursor. Only legal while state is running.
func (r *Registry) AppendStage(id string, rec types.StageRecord) (types.JobView, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return types.JobView{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.job.State != types.JobStateRunning {
		return types.JobView{}, fmt.Errorf("append_stage: job %s is not running (state=%s)", id, entry.job.State)
	}
	entry.job.StageRecords = append(entry.job.StageRecords, rec)
	entry.job.StageCursor = len(entry.job.StageRecords) - 1
	view := entry.job.Snapshot()
	entry.notifyLocked(view)

	r.publish(id, events.EventStageFinished, "stage finished", map[string]string{
		"stage":   string(rec.Name),
		"outcome": string(rec.Outcome),
	})
	return view, nil
}

// SetVerdict attaches the terminal verdict to a job. Callers transition the
// job to its terminal state separately.
func (r *Registry) SetVerdict(id string, v types.Verdict) error {
	entry, err := r.lookup(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.job.Verdict = &v
	return nil
}

// SetArtifact records the job's ArtifactRef once persist succeeds.
func (r *Registry) SetArtifact(id string, ref types.ArtifactRef) error {
	entry, err := r.lookup(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.job.ArtifactRef = &ref
	r.publish(id, events.EventArtifactWritten, "artifact written", map[string]string{
		"content_hash": ref.ContentHash,
	})
	return nil
}

// MarkDeleted records the deletion timestamp on the job (independent of
// the Object Store's own deletion log).
func (r *Registry) MarkDeleted(id string, at time.Time) error {
	entry, err := r.lookup(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.job.DeletionAt = at
	return nil
}

// Snapshot returns a read-only immutable copy of the job.
func (r *Registry) Snapshot(id string) (types.JobView, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return types.JobView{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.job.Snapshot(), nil
}

// Subscribe returns a channel of JobView updates for a job. The current
// snapshot is delivered immediately. Slow consumers have their oldest
// buffered update dropped rather than blocking the writer. The returned
// cancel function unsubscribes and must be called to release resources.
func (r *Registry) Subscribe(id string) (<-chan types.JobView, func(), error) {
	entry, err := r.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan types.JobView, subscriberBufferSize)
	entry.mu.Lock()
	entry.subs[ch] = struct{}{}
	ch <- entry.job.Snapshot()
	entry.mu.Unlock()

	cancel := func() {
		entry.mu.Lock()
		if _, ok := entry.subs[ch]; ok {
			delete(entry.subs, ch)
			close(ch)
		}
		entry.mu.Unlock()
	}
	return ch, cancel, nil
}

// notifyLocked delivers view to all subscribers, dropping the oldest
// buffered item when a subscriber's channel is full. Callers must hold
// entry.mu.
func (e *jobEntry) notifyLocked(view types.JobView) {
	for ch := range e.subs {
		select {
		case ch <- view:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- view:
			default:
			}
		}
	}
}

// Cancel triggers the job's cancel signal. Idempotent: calling it more
// than once has no additional effect.
func (r *Registry) Cancel(id string) error {
	entry, err := r.lookup(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	entry.cancelOnce.Do(func() {
		entry.cancelled = true
		close(entry.cancelCh)
	})
	entry.mu.Unlock()
	return nil
}

// CancelSignal exposes the job's cancellation channel to the executor; it
// closes exactly once, when Cancel is first called.
func (r *Registry) CancelSignal(id string) (<-chan struct{}, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return entry.cancelCh, nil
}

// IsCancelled reports whether Cancel has been called for the job.
func (r *Registry) IsCancelled(id string) (bool, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.cancelled, nil
}

// Prune removes retained_deleted jobs whose CompletedAt is older than
// before. Returns the number of jobs removed.
func (r *Registry) Prune(before time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.jobs {
		entry.mu.Lock()
		if entry.job.State == types.JobStateRetainedDeleted && entry.job.CompletedAt.Before(before) {
			for ch := range entry.subs {
				close(ch)
			}
			entry.mu.Unlock()
			delete(r.jobs, id)
			removed++
			continue
		}
		entry.mu.Unlock()
	}
	if removed > 0 {
		log.Logger.Debug().Int("count", removed).Msg("pruned retained_deleted jobs")
	}
	return removed
}

// List returns snapshots of every job currently held by the registry.
func (r *Registry) List() []types.JobView {
	r.mu.RLock()
	entries := make([]*jobEntry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	views := make([]types.JobView, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		views = append(views, e.job.Snapshot())
		e.mu.Unlock()
	}
	return views
}
