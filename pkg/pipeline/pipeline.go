package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/secureai/medgenomics/pkg/config"
	"github.com/secureai/medgenomics/pkg/log"
	"github.com/secureai/medgenomics/pkg/metrics"
	"github.com/secureai/medgenomics/pkg/registry"
	"github.com/secureai/medgenomics/pkg/scanner"
	"github.com/secureai/medgenomics/pkg/security"
	"github.com/secureai/medgenomics/pkg/store"
	"github.com/secureai/medgenomics/pkg/types"
)

// ErrQueueFull is returned by Submit when the task queue is at capacity.
type ErrQueueFull struct{}

func (ErrQueueFull) Error() string { return "pipeline: queue is at capacity" }

// Task is one unit of work handed to the executor: a job id already
// created in the registry, plus the plaintext bytes it was submitted
// with.
type Task struct {
	JobID     string
	Filename  string
	Plaintext []byte
}

// Executor runs jobs through the fixed stage list using a fixed-size
// worker pool draining a bounded queue.
type Executor struct {
	cfg       config.Config
	registry  *registry.Registry
	store     *store.Store
	automaton *scanner.Automaton
	model     *scanner.Model
	analyzer  Analyzer

	queue  chan Task
	slots  chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewExecutor builds an Executor. model may be nil (AML skips); analyzer
// defaults to LocalSummaryAnalyzer when nil.
func NewExecutor(cfg config.Config, reg *registry.Registry, st *store.Store, model *scanner.Model, analyzer Analyzer) *Executor {
	if analyzer == nil {
		analyzer = LocalSummaryAnalyzer{}
	}
	return &Executor{
		cfg:       cfg,
		registry:  reg,
		store:     st,
		automaton: scanner.NewAutomaton(),
		model:     model,
		analyzer:  analyzer,
		queue:     make(chan Task, cfg.QueueDepth),
		slots:     make(chan struct{}, cfg.QueueDepth),
		stopCh:    make(chan struct{}),
	}
}

// Start launches cfg.Workers worker goroutines.
func (e *Executor) Start() {
	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.workerLoop()
	}
}

// Stop signals every worker to exit and waits for them. A worker checks
// the stop signal only between tasks, so a job already in flight runs
// through all of its stages before Stop returns.
func (e *Executor) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

// Submit enqueues task for execution. It does not block: a full queue is
// reported immediately as ErrQueueFull so the intake surface can apply
// back-pressure.
func (e *Executor) Submit(task Task) error {
	if !e.TryReserve() {
		return ErrQueueFull{}
	}
	e.Enqueue(task)
	return nil
}

// TryReserve claims one queue slot without enqueuing a task. Callers that
// need to do other setup (such as creating a registry entry) before a
// task exists can reserve capacity first and only proceed with that
// setup if a slot was actually available, so a full queue never leaves
// behind state for work that was never admitted. Returns false if the
// queue is already at capacity.
func (e *Executor) TryReserve() bool {
	select {
	case e.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// ReleaseReservation gives back a slot claimed by TryReserve that will
// not be followed by a matching Enqueue, e.g. because the caller's own
// setup failed after reserving capacity.
func (e *Executor) ReleaseReservation() {
	<-e.slots
}

// Enqueue places task on the queue. The caller must already hold a slot
// from a successful TryReserve; Enqueue itself never blocks or reports a
// full queue, since that slot guarantees room.
func (e *Executor) Enqueue(task Task) {
	e.queue <- task
	metrics.QueueDepth.Set(float64(len(e.queue)))
}

func (e *Executor) workerLoop() {
	defer e.wg.Done()
	for {
		select {
		case task := <-e.queue:
			<-e.slots
			metrics.QueueDepth.Set(float64(len(e.queue)))
			e.run(task)
		case <-e.stopCh:
			return
		}
	}
}

// stageFunc computes a stage's detail and outcome; it is responsible for
// deciding pass/fail/skip for its own stage. runStage overrides the
// result only for timeout or cancellation.
type stageFunc func(ctx context.Context) (types.StageDetail, types.StageOutcome)

// run executes every stage of task's job in order, short-circuiting on
// the first fatal failure (fail on format/ids/persist, fail-but-not-skip
// on aml).
func (e *Executor) run(task Task) {
	jobID := task.JobID
	logger := log.WithJobID(jobID)
	start := time.Now()

	if _, err := e.registry.Transition(jobID, types.JobStateQueued, types.JobStateRunning); err != nil {
		logger.Error().Err(err).Msg("failed to transition job to running")
		return
	}

	cancelSignal, err := e.registry.CancelSignal(jobID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch cancel signal")
		return
	}

	var artifactRef *types.ArtifactRef
	reason := types.FailureReason("")
	fatal := false
	idsScore, amlScore := 0.0, 0.0
	analysisOK := false
	analysisResult := ""

	admitRec := e.runAdmit(task)
	e.appendStage(jobID, admitRec)
	if admitRec.Outcome == types.StageOutcomeFail {
		fatal, reason = true, admitRec.Detail.Reason
	}

	if !fatal {
		formatRec := e.runStage(types.StageFormat, e.cfg.StageDeadlines.Format, cancelSignal, e.formatStage(task))
		e.appendStage(jobID, formatRec)
		if formatRec.Outcome != types.StageOutcomePass {
			fatal, reason = true, formatRec.Detail.Reason
		}
	}

	if !fatal {
		idsRec := e.runStage(types.StageIDS, e.cfg.StageDeadlines.IDS, cancelSignal, e.idsStage(task))
		e.appendStage(jobID, idsRec)
		if idsRec.Detail.IDS != nil {
			idsScore = idsRec.Detail.IDS.Score
		}
		if idsRec.Outcome != types.StageOutcomePass {
			fatal, reason = true, idsRec.Detail.Reason
		}
	}

	if !fatal {
		amlRec := e.runStage(types.StageAML, e.cfg.StageDeadlines.AML, cancelSignal, e.amlStage(task))
		e.appendStage(jobID, amlRec)
		if amlRec.Detail.AML != nil {
			amlScore = amlRec.Detail.AML.Score
		}
		if amlRec.Outcome == types.StageOutcomeFail {
			fatal, reason = true, amlRec.Detail.Reason
		}
	}

	if !fatal {
		persistRec := e.runStage(types.StagePersist, e.cfg.StageDeadlines.Persist, cancelSignal, e.persistStage(task, &artifactRef))
		e.appendStage(jobID, persistRec)
		if persistRec.Outcome != types.StageOutcomePass {
			fatal, reason = true, persistRec.Detail.Reason
		}
	}

	if !fatal {
		analyzeRec := e.runStage(types.StageAnalyze, e.cfg.StageDeadlines.Analyze, cancelSignal, e.analyzeStage(task))
		e.appendStage(jobID, analyzeRec)
		if analyzeRec.Detail.Analyze != nil {
			analysisOK = analyzeRec.Detail.Analyze.OK
			analysisResult = analyzeRec.Detail.Analyze.Summary
		}
		// analyze failures are never fatal; the job still reaches completed.
	}

	finalState := types.JobStateCompleted
	if fatal {
		if reason == types.ReasonCancelled {
			finalState = types.JobStateCancelled
		} else {
			finalState = types.JobStateFailed
		}
	}

	finalizeRec := types.StageRecord{
		Name:       types.StageFinalize,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Outcome:    types.StageOutcomePass,
	}
	e.appendStage(jobID, finalizeRec)

	snapshot, err := e.registry.Snapshot(jobID)
	var allRecords []types.StageRecord
	if err == nil {
		allRecords = snapshot.StageRecords
	}

	verdict := types.Verdict{
		TerminalState:   finalState,
		Stages:          allRecords,
		ArtifactRef:     artifactRef,
		AnalysisOK:      analysisOK,
		AnalysisResult:  analysisResult,
		IDSScore:        idsScore,
		AMLScore:        amlScore,
		Reason:          reason,
		TotalDurationMs: time.Since(start).Milliseconds(),
	}
	if err := e.registry.SetVerdict(jobID, verdict); err != nil {
		logger.Error().Err(err).Msg("failed to set verdict")
	}

	if _, err := e.registry.Transition(jobID, types.JobStateRunning, finalState); err != nil {
		logger.Error().Err(err).Msg("failed to transition job to terminal state")
	}
	metrics.JobsTotal.WithLabelValues(string(finalState)).Inc()
}

func (e *Executor) appendStage(jobID string, rec types.StageRecord) {
	if _, err := e.registry.AppendStage(jobID, rec); err != nil {
		log.WithJobID(jobID).Error().Err(err).Str("stage", string(rec.Name)).Msg("failed to append stage record")
	}
}

func (e *Executor) runAdmit(task Task) types.StageRecord {
	start := time.Now()
	detail := types.StageDetail{Admit: &types.AdmitDetail{Filename: task.Filename, Size: int64(len(task.Plaintext))}}
	outcome := types.StageOutcomePass
	if len(task.Plaintext) == 0 || int64(len(task.Plaintext)) > e.cfg.MaxInputBytes {
		outcome = types.StageOutcomeFail
		detail.Reason = types.ReasonFormatInvalid
	}
	return types.StageRecord{
		Name:       types.StageAdmit,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Outcome:    outcome,
		Detail:     detail,
	}
}

// cancelledDetail is returned by a stage body that finds ctx already done
// before it has started any work, so no scanner/storage call ever begins
// once cancellation or a timeout has been observed.
func cancelledDetail() (types.StageDetail, types.StageOutcome) {
	return types.StageDetail{Reason: types.ReasonCancelled}, types.StageOutcomeFail
}

func (e *Executor) formatStage(task Task) stageFunc {
	return func(ctx context.Context) (types.StageDetail, types.StageOutcome) {
		if ctx.Err() != nil {
			return cancelledDetail()
		}
		result := scanner.ValidateFormat(task.Plaintext)
		detail := types.StageDetail{Format: &result.Detail}
		if result.Passed {
			return detail, types.StageOutcomePass
		}
		detail.Reason = types.ReasonFormatInvalid
		return detail, types.StageOutcomeFail
	}
}

func (e *Executor) idsStage(task Task) stageFunc {
	return func(ctx context.Context) (types.StageDetail, types.StageOutcome) {
		if ctx.Err() != nil {
			return cancelledDetail()
		}
		result := scanner.ScanIDS(e.automaton, task.Plaintext, e.cfg.IDSThreshold, e.cfg.IDSScoreCap)
		metrics.IDSScore.Observe(result.Detail.Score)
		detail := types.StageDetail{IDS: &result.Detail}
		if result.Passed {
			return detail, types.StageOutcomePass
		}
		detail.Reason = types.ReasonThreatsDetected
		return detail, types.StageOutcomeFail
	}
}

func (e *Executor) amlStage(task Task) stageFunc {
	return func(ctx context.Context) (types.StageDetail, types.StageOutcome) {
		if ctx.Err() != nil {
			return cancelledDetail()
		}
		body := scanner.SequenceBody(task.Plaintext)
		result := scanner.ScanAML(e.model, body, e.cfg.AMLThreshold, e.cfg.AMLFeatureDim)
		detail := types.StageDetail{AML: &result.Detail}
		if result.Skipped {
			return detail, types.StageOutcomeSkip
		}
		metrics.AMLScore.Observe(result.Detail.Score)
		if result.Passed {
			return detail, types.StageOutcomePass
		}
		detail.Reason = types.ReasonAdversarial
		return detail, types.StageOutcomeFail
	}
}

func (e *Executor) persistStage(task Task, out **types.ArtifactRef) stageFunc {
	return func(ctx context.Context) (types.StageDetail, types.StageOutcome) {
		if ctx.Err() != nil {
			return cancelledDetail()
		}
		ref, err := e.store.Put(ctx, task.JobID, task.Plaintext, security.AlgorithmAESGCM)
		if err != nil {
			if ctx.Err() != nil {
				return cancelledDetail()
			}
			return types.StageDetail{Reason: types.ReasonStorageError}, types.StageOutcomeFail
		}
		*out = &ref
		if err := e.registry.SetArtifact(task.JobID, ref); err != nil {
			log.WithJobID(task.JobID).Error().Err(err).Msg("failed to record artifact reference")
		}
		metrics.ArtifactBytesTotal.Add(float64(ref.StoredSize))
		detail := types.StageDetail{Persist: &types.PersistDetail{ContentHash: ref.ContentHash, StoredSize: ref.StoredSize}}
		return detail, types.StageOutcomePass
	}
}

func (e *Executor) analyzeStage(task Task) stageFunc {
	return func(ctx context.Context) (types.StageDetail, types.StageOutcome) {
		if ctx.Err() != nil {
			return cancelledDetail()
		}
		summary, err := e.analyzer.Analyze(ctx, task.JobID, task.Plaintext)
		if err != nil {
			detail := types.StageDetail{Analyze: &types.AnalyzeDetail{OK: false, Summary: err.Error()}}
			return detail, types.StageOutcomeFail
		}
		detail := types.StageDetail{Analyze: &types.AnalyzeDetail{OK: true, Summary: summary}}
		return detail, types.StageOutcomePass
	}
}

// runStage runs fn under a per-stage deadline, honoring cooperative
// cancellation. A timeout or cancellation always wins over whatever fn
// would have returned.
//
// cancelSignal is folded into ctx (via the watcher goroutine below) so fn
// and anything it calls — store.Put in particular — observe cancellation
// and a stage timeout through the same ctx.Done(), and can check ctx.Err()
// before starting I/O. When ctx fires first, runStage still waits for fn
// to actually return before producing the cancelled/timeout record: fn is
// never left running in the background after this call returns, so its
// side effects (registry writes, artifact persistence) can't race with
// the job already having moved past this stage.
func (e *Executor) runStage(name types.StageName, deadline time.Duration, cancelSignal <-chan struct{}, fn stageFunc) types.StageRecord {
	start := time.Now()

	// Cancellation observed before this stage even begins (e.g. the job
	// was cancelled while queued, or between two stages) never launches
	// fn at all, so a stage that does I/O (persist) can't race a
	// just-closed cancel signal with its own first ctx.Err() check.
	select {
	case <-cancelSignal:
		finished := time.Now()
		detail := types.StageDetail{Reason: types.ReasonCancelled}
		metrics.StageDuration.WithLabelValues(string(name), string(types.StageOutcomeFail)).Observe(finished.Sub(start).Seconds())
		return types.StageRecord{Name: name, StartedAt: start, FinishedAt: finished, Outcome: types.StageOutcomeFail, Detail: detail}
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-cancelSignal:
			cancel()
		case <-watchDone:
		}
	}()

	type result struct {
		detail  types.StageDetail
		outcome types.StageOutcome
	}
	done := make(chan result, 1)
	go func() {
		detail, outcome := fn(ctx)
		done <- result{detail: detail, outcome: outcome}
	}()

	var detail types.StageDetail
	var outcome types.StageOutcome

	select {
	case r := <-done:
		detail, outcome = r.detail, r.outcome
	case <-ctx.Done():
		<-done // wait for fn to actually exit before reporting this stage done

		reason, timeout := types.ReasonTimeout, true
		select {
		case <-cancelSignal:
			reason, timeout = types.ReasonCancelled, false
		default:
		}
		detail, outcome = types.StageDetail{Reason: reason, Timeout: timeout}, types.StageOutcomeFail
	}

	finished := time.Now()
	metrics.StageDuration.WithLabelValues(string(name), string(outcome)).Observe(finished.Sub(start).Seconds())

	return types.StageRecord{
		Name:       name,
		StartedAt:  start,
		FinishedAt: finished,
		Outcome:    outcome,
		Detail:     detail,
	}
}
