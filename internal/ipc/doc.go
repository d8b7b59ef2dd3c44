// Package ipc carries the control protocol between the CLI and the daemon:
// JSON-RPC over a Unix domain socket.
//
// Server registers the daemon-backed handlers and owns the socket file.
// Client wraps the connection in typed call helpers with a short dial
// timeout so commands fail quickly when no daemon is listening. The DTO
// types translate registry jobs into wire summaries both ends share.
//
// New endpoints should follow the existing request/response pairs so older
// clients keep working against newer daemons.
package ipc
