// Package domain defines the core domain models for Sevault.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - Algorithm: AEAD algorithm descriptors, tag-length resolution and
//     construction selection
//   - KeyTriple / KeyAttributes / KeyInfo: key identity, policy and the
//     stored key record
//   - Application: registered client application with credential handling
//   - Errors: domain-specific error definitions with structured codes
//
// All domain models implement validation, serialization, and
// version control where records are mutated concurrently.
package domain
