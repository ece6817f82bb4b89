// Package cmap provides a concurrent map for string-keyed records.
//
// This package implements a sharded concurrent map backing the in-memory
// metadata stores, where key-info lookups happen on every AEAD request:
//
//   - Sharding: Configurable shard count for parallelism
//   - Fine-grained Locking: Per-shard RWMutex for minimal contention
//   - Conditional Writes: SetIfAbsent/SetIfPresent for create-only and
//     update-only stores
//   - Iteration: Safe iteration while holding read locks
//
// Usage:
//
//	m := cmap.New[string, *KeyInfo]()
//	if !m.SetIfAbsent("sva-app/local/order-keys", info) {
//		// already provisioned
//	}
//	val, ok := m.Get("sva-app/local/order-keys")
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has) use RLock,
// write operations (Set, Delete) use Lock.
package cmap
