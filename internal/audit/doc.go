// Package audit provides the append-only operation trail for Sevault.
//
// Every request that reaches a domain service leaves one record here:
// who called, which operation, which key, and how it ended. Records are
// hash-chained, so removing or reordering any of them breaks the chain
// for every later record.
//
// Features:
//
//   - Batched Writes: Configurable batch size and sync interval
//   - File Rotation: Automatic rotation at configurable file sizes
//   - Encryption: Optional at-rest encryption of identifying fields
//   - Hash Chain: Each record carries the fingerprint of its predecessor
//   - Retention: Pruning by segment count or age
//
// Format:
//
//	audit-<segment-id>.log
//	[magic:8 "SVAUDIT\\x01"]
//	[Record]*
//	[checksum:32 SHA-256 of all bytes above] (absent on the active segment)
//
// Record wire format:
//
//	[Length:4][CRC32:4][Op:1][Payload:Length-5]
//
// Where:
//   - Length = CRC32 + Op + Payload (big-endian uint32)
//   - CRC32 covers Op+Payload (IEEE)
//   - Payload is JSON (optionally with an encrypted identity blob)
package audit
