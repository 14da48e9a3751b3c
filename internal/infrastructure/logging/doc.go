// Package logging provides structured logging for the HCP bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the bridge.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Size-based file rotation via lumberjack
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "file"     # stdout, stderr, file
//	  file:
//	    path: "/var/log/hcpbridge/bridge.log"
//	    max_size: 10     # megabytes
//	    max_backups: 3
//	    max_age: 28      # days
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	defer logger.Close()
//	logger.Info("door state published", "motion", "open")
//
// Never log the MQTT password, InfluxDB token or HomeKit PIN.
package logging
