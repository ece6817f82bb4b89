// Package localserver serves the management API over a Unix domain
// socket for same-host callers.
//
// The socket carries the same HTTP API as the network listener. Client
// operations still authenticate with application credentials; admin
// endpoints additionally accept local connections without credentials,
// because reaching the socket already required passing its file
// permissions. Typical uses are bootstrapping the first admin
// application, inspecting status, and taking backups from the host
// itself.
package localserver
