// Package api implements the HTTP webhook and WebSocket server.
//
// This package provides:
//   - POST /webhook, the bearer-authenticated switch action endpoint
//   - GET /switches, a snapshot of every configured switch
//   - GET /ws, a WebSocket stream of switch.state_changed events
//   - GET / and GET /health for service discovery and liveness
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Errors
//
// Error bodies carry a single "detail" member. Authentication failures
// always produce the same 401 body so callers cannot tell a bad signature
// from an expired token. Validation failures list field errors with a
// "loc" path such as ["body", "switch_id"].
//
// # Security
//
// Every switch endpoint requires an HS256 bearer token signed with the
// shared secret. Neither the secret nor the token is ever logged or echoed.
package api
