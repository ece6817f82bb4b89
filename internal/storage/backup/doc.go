// Package backup writes and restores encrypted exports of the key-info
// database.
//
// A backup file contains the storage engine's snapshot stream, sealed with
// AES-256-GCM under a file key derived from an operator passphrase
// (Argon2id, then HKDF expansion). Key material never appears in a backup;
// the database holds only key metadata and application records.
//
// File format:
//
//	[Magic:8 "SVABCKUP"]
//	[HeaderLen:4 BE][Header JSON: version, created_at, algorithm, salt]
//	[DataLen:4 BE][Sealed snapshot stream (nonce || ciphertext || tag)]
//	[Checksum:32 SHA-256 of everything above]
//
// The header stays plaintext so Restore can derive the file key from its
// salt, and so Inspect can report metadata without a passphrase.
package backup
