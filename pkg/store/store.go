// Package store implements the content-addressed encrypted Object Store:
// durable blob storage keyed by SHA-256 of the plaintext, a bbolt-backed
// metadata index, and an append-only deletion log that backs cryptographic
// deletion proofs.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/secureai/medgenomics/pkg/metrics"
	"github.com/secureai/medgenomics/pkg/security"
	"github.com/secureai/medgenomics/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketArtifacts = []byte("artifacts")
	bucketDeletions = []byte("deletions")
)

// ErrNotFound is returned when a content hash or job id has no metadata row.
type ErrNotFound struct{ What string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("store: not found: %s", e.What) }

// ErrStorageError wraps a failure writing or reading the blob directory or
// the metadata index.
type ErrStorageError struct{ Err error }

func (e *ErrStorageError) Error() string { return fmt.Sprintf("store: storage error: %v", e.Err) }
func (e *ErrStorageError) Unwrap() error { return e.Err }

// ErrIntegrityError is returned when a blob's authentication tag/MAC fails
// to verify on get.
type ErrIntegrityError struct{ ContentHash string }

func (e *ErrIntegrityError) Error() string {
	return fmt.Sprintf("store: integrity check failed for %s", e.ContentHash)
}

// artifactRow is the bbolt-persisted form of an ArtifactRef, keyed by job_id.
type artifactRow struct {
	JobID          string    `json:"job_id"`
	ContentHash    string    `json:"content_hash"`
	CiphertextPath string    `json:"ciphertext_path"`
	AlgorithmTag   string    `json:"algorithm_tag"`
	KeyFingerprint string    `json:"key_fingerprint"`
	OriginalSize   int64     `json:"original_size"`
	StoredSize     int64     `json:"stored_size"`
	CreatedAt      time.Time `json:"created_at"`
}

// deletionRow is the bbolt-persisted form of a DeletionProof, keyed by job_id.
type deletionRow struct {
	JobID       string    `json:"job_id"`
	ContentHash string    `json:"content_hash"`
	DeletionTS  time.Time `json:"deletion_ts"`
	ProofDigest string    `json:"proof_digest"`
}

// Store is the Object Store: content-addressed encrypted blobs plus the
// durable metadata index described in spec.md §4.1.
type Store struct {
	blobsDir     string
	db           *bolt.DB
	serverSecret []byte
}

// Open opens (creating if absent) the metadata index and blob directory
// rooted at dataDir. serverSecret is the process-wide value used both for
// per-job key derivation and deletion-proof digests; it is never persisted.
func Open(dataDir string, serverSecret []byte) (*Store, error) {
	blobsDir := filepath.Join(dataDir, "blobs")
	if err := os.MkdirAll(blobsDir, 0o700); err != nil {
		return nil, &ErrStorageError{Err: fmt.Errorf("create blobs dir: %w", err)}
	}

	dbPath := filepath.Join(dataDir, "meta.db")
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, &ErrStorageError{Err: fmt.Errorf("open meta.db: %w", err)}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketArtifacts, bucketDeletions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &ErrStorageError{Err: err}
	}

	return &Store{blobsDir: blobsDir, db: db, serverSecret: serverSecret}, nil
}

// Close closes the metadata index.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) blobPath(contentHash string) string {
	return filepath.Join(s.blobsDir, contentHash[:2], contentHash[2:])
}

// Put computes the content hash of plaintext, encrypts it under a key
// derived from that content hash, writes the ciphertext atomically, and
// records a metadata row keyed by jobID. On any failure the partially
// written blob is removed.
//
// ctx is checked before the write and again before the blob is committed
// to the metadata index; if ctx is already done at either point, Put
// aborts without leaving a metadata row, so a cancelled or timed-out
// caller never ends up with a persisted artifact it didn't ask for.
func (s *Store) Put(ctx context.Context, jobID string, plaintext []byte, algorithm security.AlgorithmTag) (types.ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return types.ArtifactRef{}, err
	}

	sum := sha256.Sum256(plaintext)
	contentHash := hex.EncodeToString(sum[:])

	// Key material is derived from the content hash, not the job id: two
	// jobs submitting identical plaintext must decrypt the same stored
	// blob, preserving the content-addressed dedup invariant.
	key := security.DeriveKey(s.serverSecret, contentHash)
	ciphertext, err := security.Seal(algorithm, key, plaintext)
	if err != nil {
		return types.ArtifactRef{}, &ErrStorageError{Err: err}
	}

	if err := ctx.Err(); err != nil {
		return types.ArtifactRef{}, err
	}

	path := s.blobPath(contentHash)
	if err := writeAtomic(path, ciphertext); err != nil {
		return types.ArtifactRef{}, &ErrStorageError{Err: err}
	}

	if err := ctx.Err(); err != nil {
		s.removeBlobIfUnreferenced(contentHash, path)
		return types.ArtifactRef{}, err
	}

	createdAt := time.Now()
	row := artifactRow{
		JobID:          jobID,
		ContentHash:    contentHash,
		CiphertextPath: path,
		AlgorithmTag:   string(algorithm),
		KeyFingerprint: security.KeyFingerprint(key),
		OriginalSize:   int64(len(plaintext)),
		StoredSize:     int64(len(ciphertext)),
		CreatedAt:      createdAt,
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return b.Put([]byte(jobID), data)
	}); err != nil {
		s.removeBlobIfUnreferenced(contentHash, path)
		return types.ArtifactRef{}, &ErrStorageError{Err: fmt.Errorf("write metadata: %w", err)}
	}

	return types.ArtifactRef{
		ContentHash:    row.ContentHash,
		CiphertextPath: row.CiphertextPath,
		OriginalSize:   row.OriginalSize,
		StoredSize:     row.StoredSize,
		AlgorithmTag:   row.AlgorithmTag,
		KeyFingerprint: row.KeyFingerprint,
		JobID:          row.JobID,
		CreatedAt:      row.CreatedAt,
	}, nil
}

// Get looks up the metadata row for jobID, reads and verifies the
// ciphertext, and returns the decrypted plaintext.
func (s *Store) Get(jobID string) ([]byte, error) {
	row, err := s.getRow(jobID)
	if err != nil {
		return nil, err
	}

	ciphertext, err := os.ReadFile(row.CiphertextPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ErrNotFound{What: row.ContentHash}
		}
		return nil, &ErrStorageError{Err: err}
	}

	key := security.DeriveKey(s.serverSecret, row.ContentHash)
	plaintext, err := security.Open(security.AlgorithmTag(row.AlgorithmTag), key, ciphertext)
	if err != nil {
		metrics.IntegrityFailuresTotal.Inc()
		return nil, &ErrIntegrityError{ContentHash: row.ContentHash}
	}
	return plaintext, nil
}

func (s *Store) getRow(jobID string) (*artifactRow, error) {
	var row artifactRow
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		data := b.Get([]byte(jobID))
		if data == nil {
			return &ErrNotFound{What: jobID}
		}
		return json.Unmarshal(data, &row)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete removes the ciphertext (tolerating already-absent) and the
// metadata row for ref, then records a keyed DeletionProof in the
// append-only deletion log. Calling Delete twice yields the same proof
// (same deletion timestamp), because the deletion row is written once and
// subsequent calls are satisfied from it.
//
// The ciphertext is content-addressed, so two jobs that submitted
// identical plaintext share one blob path. Delete only unlinks that blob
// once no other job's metadata row still references the same content
// hash, so deleting one job's artifact can never break another job's Get.
func (s *Store) Delete(ref types.ArtifactRef) (types.DeletionProof, error) {
	if existing, err := s.getDeletionRow(ref.JobID); err == nil {
		return rowToProof(existing), nil
	}

	shared, err := s.contentHashReferenced(ref.ContentHash, ref.JobID)
	if err != nil {
		return types.DeletionProof{}, &ErrStorageError{Err: err}
	}
	if !shared {
		if err := os.Remove(ref.CiphertextPath); err != nil && !os.IsNotExist(err) {
			return types.DeletionProof{}, &ErrStorageError{Err: err}
		}
	}

	_ = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketArtifacts).Delete([]byte(ref.JobID))
	})

	deletionTS := time.Now()
	digest := ProofDigest(ref.JobID, ref.ContentHash, deletionTS, s.serverSecret)
	row := deletionRow{
		JobID:       ref.JobID,
		ContentHash: ref.ContentHash,
		DeletionTS:  deletionTS,
		ProofDigest: digest,
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeletions)
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return b.Put([]byte(ref.JobID), data)
	}); err != nil {
		return types.DeletionProof{}, &ErrStorageError{Err: fmt.Errorf("write deletion log: %w", err)}
	}

	return rowToProof(row), nil
}

// Proof looks up the deletion log for jobID.
func (s *Store) Proof(jobID string) (types.DeletionProof, error) {
	row, err := s.getDeletionRow(jobID)
	if err != nil {
		return types.DeletionProof{}, err
	}
	return rowToProof(*row), nil
}

func (s *Store) getDeletionRow(jobID string) (*deletionRow, error) {
	var row deletionRow
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeletions)
		data := b.Get([]byte(jobID))
		if data == nil {
			return &ErrNotFound{What: jobID}
		}
		return json.Unmarshal(data, &row)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// removeBlobIfUnreferenced deletes the blob at path unless some job's
// metadata row still references contentHash, preserving the invariant
// that any content_hash present in metadata has a ciphertext file on disk.
func (s *Store) removeBlobIfUnreferenced(contentHash, path string) {
	referenced, err := s.contentHashReferenced(contentHash, "")
	if err != nil || referenced {
		return
	}
	_ = os.Remove(path)
}

// contentHashReferenced reports whether any artifact row other than
// excludeJobID references contentHash.
func (s *Store) contentHashReferenced(contentHash, excludeJobID string) (bool, error) {
	referenced := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		return b.ForEach(func(k, v []byte) error {
			if string(k) == excludeJobID {
				return nil
			}
			var row artifactRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			if row.ContentHash == contentHash {
				referenced = true
			}
			return nil
		})
	})
	return referenced, err
}

func rowToProof(row deletionRow) types.DeletionProof {
	return types.DeletionProof{
		JobID:               row.JobID,
		ArtifactContentHash: row.ContentHash,
		DeletionTimestamp:   row.DeletionTS,
		ProofDigest:         row.ProofDigest,
	}
}

// ProofDigest computes SHA256(job_id ∥ content_hash ∥ deletion_ts ∥
// server_secret), the keyed digest spec.md §3 mandates for deletion proofs.
func ProofDigest(jobID, contentHash string, deletionTS time.Time, serverSecret []byte) string {
	h := sha256.New()
	h.Write([]byte(jobID))
	h.Write([]byte(contentHash))
	h.Write([]byte(deletionTS.Format(time.RFC3339Nano)))
	h.Write(serverSecret)
	return hex.EncodeToString(h.Sum(nil))
}

// writeAtomic writes data to path via a temporary sibling file followed by
// a rename, so a reader never observes a partially written blob.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
