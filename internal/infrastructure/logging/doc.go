// Package logging provides structured logging for Trailobot Core.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text on a bench, with service and version attached to every
// record.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("bridge connected", "endpoint", endpoint)
//
// Components accept a small Logger interface (Debug/Info/Warn/Error with
// key-value pairs) so *Logger and *slog.Logger both satisfy them.
package logging
