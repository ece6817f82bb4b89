// Package handler provides HTTP request handlers for Sevault.
//
// This package contains handlers for all HTTP endpoints:
//
//   - aead.go: Authenticated encryption and decryption
//   - key.go: Key provisioning in the caller's namespace
//   - admin.go: Application management, status, backup, audit tail
//   - health.go: Health and readiness checks
//
// All handlers follow a consistent pattern:
//
//   - Parse and validate request
//   - Call domain service
//   - Append the operation's audit record
//   - Format and return response
//   - Handle errors with appropriate HTTP status codes
package handler
