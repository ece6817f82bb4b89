// Package main provides the entry point for sevault-cli.
//
// The CLI tool provides command-line access to a Sevault server for:
//
//   - AEAD encryption and decryption (encrypt, decrypt)
//   - Key management (list, get, create, destroy)
//   - Application credential management (register, rotate, disable)
//   - System administration (status, health, audit, backup)
//   - Client configuration and profiles
//
// Usage:
//
//	sevault-cli [command] [flags]
//	sevault-cli key list --output json
//	sevault-cli encrypt order-keys --nonce "$NONCE" --in plain.bin --out cipher.bin
//
// The CLI reads defaults and named profiles from ~/.sevault/config.yaml
// and connects over HTTP or, with --socket, the local Unix socket.
package main
