/*
Package security provides the Object Store's authenticated encryption.

Two algorithms implement the AEAD contract behind a common Seal/Open pair:
AES-256-GCM (preferred) and a keyed-XOR-plus-HMAC-SHA256 fallback. The
algorithm actually used for a given artifact is recorded as its
AlgorithmTag so get() can verify under the matching scheme.

Key material is derived deterministically from a process-wide server
secret and an identifier via DeriveKey; the Object Store passes the
artifact's content hash, so jobs that share a blob share its key.
KeyFingerprint records SHA-256 of the key material for the metadata index
without ever persisting the key itself.
*/
package security
