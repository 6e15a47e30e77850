// Package logging provides structured logging for TrainLink.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text for development, and a "service" plus "version"
// attribute on every entry.
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	registry.SetLogger(logger.With("component", "registry"))
//	logger.Info("loco added", "address", 66)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
