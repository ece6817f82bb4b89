// Package connection provides connection management for sevault-cli.
//
// A Target names either a network address or the server's local Unix
// socket; Dial turns it into a Client speaking the HTTP API. Socket
// targets are preferred for admin work on the server host, since the
// local listener trusts socket peers without application credentials.
//
// ParseResponse unwraps the server's response envelope and turns error
// envelopes into "[CODE] message" errors.
package connection
