package registry

import (
	"testing"
	"time"

	"github.com/secureai/medgenomics/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsDuplicateID(t *testing.T) {
	r := New(nil)
	_, err := r.Create("job-1", "sample.fasta", 10)
	require.NoError(t, err)

	_, err = r.Create("job-1", "sample.fasta", 10)
	require.Error(t, err)
	var dup *ErrAlreadyExists
	assert.ErrorAs(t, err, &dup)
}

func TestLegalTransitions(t *testing.T) {
	r := New(nil)
	view, err := r.Create("job-1", "sample.fasta", 10)
	require.NoError(t, err)
	assert.Equal(t, types.JobStateQueued, view.State)

	view, err = r.Transition("job-1", types.JobStateQueued, types.JobStateRunning)
	require.NoError(t, err)
	assert.Equal(t, types.JobStateRunning, view.State)

	view, err = r.Transition("job-1", types.JobStateRunning, types.JobStateCompleted)
	require.NoError(t, err)
	assert.Equal(t, types.JobStateCompleted, view.State)
	assert.False(t, view.CompletedAt.IsZero())
}

func TestIllegalTransitionRejected(t *testing.T) {
	r := New(nil)
	_, err := r.Create("job-1", "sample.fasta", 10)
	require.NoError(t, err)

	_, err = r.Transition("job-1", types.JobStateQueued, types.JobStateCompleted)
	require.Error(t, err)
	var illegal *ErrIllegalTransition
	assert.ErrorAs(t, err, &illegal)
}

func TestAppendStageOnlyWhileRunning(t *testing.T) {
	r := New(nil)
	_, err := r.Create("job-1", "sample.fasta", 10)
	require.NoError(t, err)

	_, err = r.AppendStage("job-1", types.StageRecord{Name: types.StageAdmit})
	require.Error(t, err)

	_, err = r.Transition("job-1", types.JobStateQueued, types.JobStateRunning)
	require.NoError(t, err)

	view, err := r.AppendStage("job-1", types.StageRecord{Name: types.StageAdmit, Outcome: types.StageOutcomePass})
	require.NoError(t, err)
	assert.Len(t, view.StageRecords, 1)
	assert.Equal(t, 0, view.StageCursor)
}

func TestSnapshotIsConsistentCut(t *testing.T) {
	r := New(nil)
	_, err := r.Create("job-1", "sample.fasta", 10)
	require.NoError(t, err)
	_, err = r.Transition("job-1", types.JobStateQueued, types.JobStateRunning)
	require.NoError(t, err)
	_, err = r.AppendStage("job-1", types.StageRecord{Name: types.StageAdmit, Outcome: types.StageOutcomePass})
	require.NoError(t, err)

	view, err := r.Snapshot("job-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, view.StageCursor, len(view.StageRecords)-1)
}

func TestSubscribeDeliversCurrentSnapshotThenUpdates(t *testing.T) {
	r := New(nil)
	_, err := r.Create("job-1", "sample.fasta", 10)
	require.NoError(t, err)

	ch, cancel, err := r.Subscribe("job-1")
	require.NoError(t, err)
	defer cancel()

	select {
	case v := <-ch:
		assert.Equal(t, types.JobStateQueued, v.State)
	case <-time.After(time.Second):
		t.Fatal("expected immediate snapshot delivery")
	}

	_, err = r.Transition("job-1", types.JobStateQueued, types.JobStateRunning)
	require.NoError(t, err)

	select {
	case v := <-ch:
		assert.Equal(t, types.JobStateRunning, v.State)
	case <-time.After(time.Second):
		t.Fatal("expected update delivery")
	}
}

func TestSubscribeDropsOldestOnOverflow(t *testing.T) {
	r := New(nil)
	_, err := r.Create("job-1", "sample.fasta", 10)
	require.NoError(t, err)

	ch, cancel, err := r.Subscribe("job-1")
	require.NoError(t, err)
	defer cancel()
	<-ch // drain the initial snapshot

	_, err = r.Transition("job-1", types.JobStateQueued, types.JobStateRunning)
	require.NoError(t, err)

	for i := 0; i < subscriberBufferSize+8; i++ {
		rec := types.StageRecord{Name: types.StageAdmit, Outcome: types.StageOutcomePass}
		_, err := r.AppendStage("job-1", rec)
		require.NoError(t, err)
	}

	// The channel never blocks the writer and never exceeds its capacity.
	assert.LessOrEqual(t, len(ch), subscriberBufferSize)
}

func TestCancelIsIdempotent(t *testing.T) {
	r := New(nil)
	_, err := r.Create("job-1", "sample.fasta", 10)
	require.NoError(t, err)

	require.NoError(t, r.Cancel("job-1"))
	require.NoError(t, r.Cancel("job-1"))

	cancelled, err := r.IsCancelled("job-1")
	require.NoError(t, err)
	assert.True(t, cancelled)

	sig, err := r.CancelSignal("job-1")
	require.NoError(t, err)
	select {
	case <-sig:
	default:
		t.Fatal("expected cancel signal to be closed")
	}
}

func TestPruneRemovesOnlyExpiredRetainedDeleted(t *testing.T) {
	r := New(nil)
	_, err := r.Create("job-1", "sample.fasta", 10)
	require.NoError(t, err)
	_, err = r.Transition("job-1", types.JobStateQueued, types.JobStateRunning)
	require.NoError(t, err)
	_, err = r.Transition("job-1", types.JobStateRunning, types.JobStateCompleted)
	require.NoError(t, err)
	_, err = r.Transition("job-1", types.JobStateCompleted, types.JobStateRetainedDeleted)
	require.NoError(t, err)

	removed := r.Prune(time.Now().Add(-time.Hour))
	assert.Equal(t, 0, removed, "not yet past cutoff")

	removed = r.Prune(time.Now().Add(time.Hour))
	assert.Equal(t, 1, removed)

	_, err = r.Snapshot("job-1")
	require.Error(t, err)
}
