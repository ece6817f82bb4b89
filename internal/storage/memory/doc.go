// Package memory provides in-memory storage for Sevault.
//
// It implements the service-layer repository interfaces directly, with no
// persistence. Used by tests and by the "memory" storage engine in dev
// deployments; a restart loses all records, so production deployments use
// the Badger-backed stores instead.
//
// Thread Safety:
//
// All operations are thread-safe. The key-info store shards its primary
// index; the application store uses a single RWMutex, which is enough for
// its low write volume.
package memory
