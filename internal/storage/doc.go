// Package storage provides persistent storage for Sevault.
//
// The KVEngine interface abstracts an embedded key-value store; the
// Badger v3 implementation is the production engine. On top of it, the
// keyinfo subpackage persists key metadata and application records as
// JSON values, the backup subpackage seals engine snapshots into
// encrypted export files, and the memory subpackage offers non-durable
// stores for tests and dev deployments.
//
// What the engine holds:
//
//   - key/<app>/<provider>/<name>: key metadata (slot, attributes)
//   - app/<app-id>: application records (roles, secret hashes, limits)
//
// Key material never reaches this layer; it lives only on the secure
// element, addressed by slot number.
package storage
