// Package output provides output formatting for sevault-cli.
//
// Two formats are supported: a tab-aligned table for humans and
// indented JSON for scripting. The table formatter derives columns
// from struct json tags, so API response types render without
// per-command table code.
package output
