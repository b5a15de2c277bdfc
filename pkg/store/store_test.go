package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/secureai/medgenomics/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, []byte("test-server-secret"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	plaintext := []byte(">h1\nACGTACGTACGT\n")

	ref, err := s.Put(context.Background(), "job-1", plaintext, security.AlgorithmAESGCM)
	require.NoError(t, err)
	assert.Equal(t, int64(len(plaintext)), ref.OriginalSize)

	got, err := s.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestRePutSamePlaintextYieldsSameContentHash(t *testing.T) {
	s := newTestStore(t)
	plaintext := []byte(">h1\nACGTACGTACGT\n")

	ref1, err := s.Put(context.Background(), "job-1", plaintext, security.AlgorithmAESGCM)
	require.NoError(t, err)
	ref2, err := s.Put(context.Background(), "job-2", plaintext, security.AlgorithmAESGCM)
	require.NoError(t, err)

	assert.Equal(t, ref1.ContentHash, ref2.ContentHash)

	got1, err := s.Get("job-1")
	require.NoError(t, err)
	got2, err := s.Get("job-2")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got1)
	assert.Equal(t, plaintext, got2)
}

func TestGetMissingJobReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("no-such-job")
	require.Error(t, err)
	var nf *ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestGetDetectsTamperedCiphertext(t *testing.T) {
	s := newTestStore(t)
	plaintext := []byte("payload")
	ref, err := s.Put(context.Background(), "job-1", plaintext, security.AlgorithmXORHMAC)
	require.NoError(t, err)

	data, err := os.ReadFile(ref.CiphertextPath)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(ref.CiphertextPath, data, 0o600))

	_, err = s.Get("job-1")
	require.Error(t, err)
	var integrityErr *ErrIntegrityError
	assert.ErrorAs(t, err, &integrityErr)
}

func TestDeleteThenGetReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	plaintext := []byte("payload")
	ref, err := s.Put(context.Background(), "job-1", plaintext, security.AlgorithmAESGCM)
	require.NoError(t, err)

	_, err = os.Stat(ref.CiphertextPath)
	require.NoError(t, err)

	proof, err := s.Delete(ref)
	require.NoError(t, err)
	assert.Equal(t, "job-1", proof.JobID)

	_, err = os.Stat(ref.CiphertextPath)
	assert.True(t, os.IsNotExist(err))

	_, err = s.Get("job-1")
	require.Error(t, err)
}

func TestDeleteDoesNotUnlinkBlobStillReferencedByAnotherJob(t *testing.T) {
	s := newTestStore(t)
	plaintext := []byte("shared payload")

	ref1, err := s.Put(context.Background(), "job-1", plaintext, security.AlgorithmAESGCM)
	require.NoError(t, err)
	ref2, err := s.Put(context.Background(), "job-2", plaintext, security.AlgorithmAESGCM)
	require.NoError(t, err)
	require.Equal(t, ref1.CiphertextPath, ref2.CiphertextPath)

	_, err = s.Delete(ref1)
	require.NoError(t, err)

	_, err = os.Stat(ref2.CiphertextPath)
	require.NoError(t, err, "blob must survive while job-2's row still references it")

	got, err := s.Get("job-2")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	_, err = s.Delete(ref2)
	require.NoError(t, err)
	_, err = os.Stat(ref2.CiphertextPath)
	assert.True(t, os.IsNotExist(err), "blob must be removed once the last referencing job is deleted")
}

func TestDeleteTwiceYieldsSameProof(t *testing.T) {
	s := newTestStore(t)
	ref, err := s.Put(context.Background(), "job-1", []byte("payload"), security.AlgorithmAESGCM)
	require.NoError(t, err)

	proof1, err := s.Delete(ref)
	require.NoError(t, err)
	proof2, err := s.Delete(ref)
	require.NoError(t, err)

	assert.Equal(t, proof1.DeletionTimestamp.UnixNano(), proof2.DeletionTimestamp.UnixNano())
	assert.Equal(t, proof1.ProofDigest, proof2.ProofDigest)
}

func TestProofDigestRecomputesCorrectly(t *testing.T) {
	s := newTestStore(t)
	ref, err := s.Put(context.Background(), "job-1", []byte("payload"), security.AlgorithmAESGCM)
	require.NoError(t, err)

	proof, err := s.Delete(ref)
	require.NoError(t, err)

	want := ProofDigest(proof.JobID, proof.ArtifactContentHash, proof.DeletionTimestamp, []byte("test-server-secret"))
	assert.Equal(t, want, proof.ProofDigest)
}

func TestProofBeforeDeletionIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Put(context.Background(), "job-1", []byte("payload"), security.AlgorithmAESGCM)
	require.NoError(t, err)

	_, err = s.Proof("job-1")
	require.Error(t, err)
}

func TestWriteAtomicLeavesNoTempFileOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/ab/cdef"
	require.NoError(t, writeAtomic(path, []byte("data")))

	entries, err := os.ReadDir(dir + "/ab")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cdef", entries[0].Name())
}

func TestProofDigestVariesWithTimestamp(t *testing.T) {
	secret := []byte("server-secret")
	t1 := time.Now()
	t2 := t1.Add(time.Second)
	d1 := ProofDigest("job-1", "hash", t1, secret)
	d2 := ProofDigest("job-1", "hash", t2, secret)
	assert.NotEqual(t, d1, d2)
}
