package intake

import (
	"testing"
	"time"

	"github.com/secureai/medgenomics/pkg/config"
	"github.com/secureai/medgenomics/pkg/events"
	"github.com/secureai/medgenomics/pkg/pipeline"
	"github.com/secureai/medgenomics/pkg/registry"
	"github.com/secureai/medgenomics/pkg/store"
	"github.com/secureai/medgenomics/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSurface(t *testing.T) *Surface {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 1
	cfg.QueueDepth = 8
	cfg.MaxInputBytes = 1024
	cfg.StageDeadlines = config.StageDeadlines{
		Format: time.Second, IDS: time.Second, AML: time.Second,
		Persist: time.Second, Analyze: time.Second,
	}

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	reg := registry.New(broker)
	st, err := store.Open(t.TempDir(), []byte("server-secret"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	exec := pipeline.NewExecutor(cfg, reg, st, nil, nil)
	exec.Start()
	t.Cleanup(exec.Stop)

	return New(cfg, reg, exec, st)
}

func waitSurfaceTerminal(t *testing.T, s *Surface, jobID string) types.JobView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, err := s.Status(jobID)
		require.NoError(t, err)
		if view.State.Terminal() {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach terminal state")
	return types.JobView{}
}

func TestSubmitRejectsOversizedPayload(t *testing.T) {
	s := testSurface(t)
	_, err := s.Submit("huge.fasta", make([]byte, 2048))
	require.Error(t, err)
	var tooLarge *ErrInputTooLarge
	assert.ErrorAs(t, err, &tooLarge)
}

func TestSubmitRejectsEmptyPayload(t *testing.T) {
	s := testSurface(t)
	_, err := s.Submit("empty.fasta", []byte{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyInput{})
}

func TestSubmitStatusResultRoundTrip(t *testing.T) {
	s := testSurface(t)
	jobID, err := s.Submit("sample.fasta", []byte(">seq1\nACGTACGTACGT\n"))
	require.NoError(t, err)

	view := waitSurfaceTerminal(t, s, jobID)
	assert.Equal(t, types.JobStateCompleted, view.State)

	verdict, err := s.Result(jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStateCompleted, verdict.TerminalState)
}

func TestResultBeforeTerminalErrors(t *testing.T) {
	s := testSurface(t)
	// Create without submitting to the executor, so it stays queued.
	jobID := "never-run"
	_, err := s.registry.Create(jobID, "x.fasta", 1)
	require.NoError(t, err)

	_, err = s.Result(jobID)
	require.Error(t, err)
	var notReady *ErrNotReady
	assert.ErrorAs(t, err, &notReady)
}

func TestResultOnUnknownJobIsNotFound(t *testing.T) {
	s := testSurface(t)
	_, err := s.Result("no-such-job")
	require.Error(t, err)
	var notFound *registry.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestSubmitAtQueueCapacityLeavesNoZombieRegistryEntry(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 0
	cfg.QueueDepth = 1
	cfg.MaxInputBytes = 1024

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	reg := registry.New(broker)
	st, err := store.Open(t.TempDir(), []byte("server-secret"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	exec := pipeline.NewExecutor(cfg, reg, st, nil, nil)
	// No Start(): with zero workers the single queue slot stays occupied.
	s := New(cfg, reg, exec, st)

	firstID, err := s.Submit("sample.fasta", []byte(">seq1\nACGT\n"))
	require.NoError(t, err)

	before := len(reg.List())

	_, err = s.Submit("overflow.fasta", []byte(">seq1\nACGT\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueAtCapacity{})

	after := reg.List()
	assert.Len(t, after, before, "a rejected submission must not leave a registry entry behind")
	for _, view := range after {
		assert.Equal(t, firstID, view.ID)
	}
}

func TestCancelRequestsCooperativeCancellation(t *testing.T) {
	s := testSurface(t)
	jobID, err := s.Submit("sample.fasta", []byte(">seq1\nACGTACGTACGT\n"))
	require.NoError(t, err)

	require.NoError(t, s.Cancel(jobID))
	cancelled, err := s.registry.IsCancelled(jobID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestProofErrorsBeforeDeletion(t *testing.T) {
	s := testSurface(t)
	jobID, err := s.Submit("sample.fasta", []byte(">seq1\nACGTACGTACGT\n"))
	require.NoError(t, err)
	waitSurfaceTerminal(t, s, jobID)

	_, err = s.Proof(jobID)
	assert.Error(t, err)
}
