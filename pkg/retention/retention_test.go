package retention

import (
	"context"
	"testing"
	"time"

	"github.com/secureai/medgenomics/pkg/events"
	"github.com/secureai/medgenomics/pkg/registry"
	"github.com/secureai/medgenomics/pkg/security"
	"github.com/secureai/medgenomics/pkg/store"
	"github.com/secureai/medgenomics/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSweeperEnv(t *testing.T) (*registry.Registry, *store.Store) {
	t.Helper()
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	reg := registry.New(broker)
	st, err := store.Open(t.TempDir(), []byte("server-secret"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return reg, st
}

func completeJobWithArtifact(t *testing.T, reg *registry.Registry, st *store.Store, jobID string) types.ArtifactRef {
	t.Helper()
	_, err := reg.Create(jobID, "sample.fasta", 10)
	require.NoError(t, err)
	_, err = reg.Transition(jobID, types.JobStateQueued, types.JobStateRunning)
	require.NoError(t, err)

	ref, err := st.Put(context.Background(), jobID, []byte("payload"), security.AlgorithmAESGCM)
	require.NoError(t, err)
	require.NoError(t, reg.SetArtifact(jobID, ref))

	_, err = reg.Transition(jobID, types.JobStateRunning, types.JobStateCompleted)
	require.NoError(t, err)
	return ref
}

func TestSweepExpiresOldCompletedJobArtifact(t *testing.T) {
	reg, st := testSweeperEnv(t)
	jobID := "job-old"
	completeJobWithArtifact(t, reg, st, jobID)

	// A zero retention window means every terminal job is already past
	// its cutoff the moment the sweep runs.
	s := New(reg, st, nil, 0, time.Minute)
	s.sweep()

	got, err := reg.Snapshot(jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStateRetainedDeleted, got.State)

	_, err = st.Get(jobID)
	assert.Error(t, err)
}

func TestSweepLeavesRecentCompletedJobsAlone(t *testing.T) {
	reg, st := testSweeperEnv(t)
	jobID := "job-recent"
	completeJobWithArtifact(t, reg, st, jobID)

	s := New(reg, st, nil, time.Hour, time.Minute)
	s.sweep()

	got, err := reg.Snapshot(jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStateCompleted, got.State)

	_, err = st.Get(jobID)
	assert.NoError(t, err)
}

func TestSweepPrunesAlreadyDeletedJobsPastWindow(t *testing.T) {
	reg, st := testSweeperEnv(t)
	jobID := "job-prune"
	completeJobWithArtifact(t, reg, st, jobID)

	s := New(reg, st, nil, 0, time.Minute)
	s.sweep()
	s.sweep()

	_, err := reg.Snapshot(jobID)
	assert.Error(t, err)
}

func TestStartStopDoesNotPanic(t *testing.T) {
	reg, st := testSweeperEnv(t)
	s := New(reg, st, nil, time.Hour, 50*time.Millisecond)
	s.Start()
	time.Sleep(120 * time.Millisecond)
	s.Stop()
}
