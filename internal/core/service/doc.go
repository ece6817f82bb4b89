// Package service provides domain services for Sevault.
//
// Domain services contain pure business logic and orchestrate operations
// on domain models. They define interfaces for storage dependencies,
// allowing for dependency injection and testability.
//
// This package contains:
//
//   - AeadService: Authenticated encryption and decryption through the
//     secure element
//   - KeyService: Key provisioning, slot allocation, and destruction
//   - ApplicationService: Application authentication, authorization, and
//     rate limiting
//
// Services are stateless and thread-safe, designed for high-concurrency
// scenarios with proper caching and rate limiting support.
package service
