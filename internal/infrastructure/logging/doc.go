// Package logging provides structured logging for the taskt runtime.
//
// It wraps log/slog so every component logs the same way:
//
//   - JSON output by default, text for interactive use
//   - service and version attributes on every record
//   - level filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("run started", "run_id", id)
//
// Never log the listener auth key or bearer tokens.
package logging
