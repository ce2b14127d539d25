// Package logging provides structured logging for the webhook service.
//
// It wraps log/slog so every component logs with the same handler and
// the same default fields (service, version).
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log bearer tokens or the shared secret. Log the failure kind
// instead (malformed, bad_signature, expired).
package logging
