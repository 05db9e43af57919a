// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Log Levels:
//   - Debug: Verbose debugging information
//   - Info: General informational messages
//   - Warn: Warning messages
//   - Error: Error messages
//   - Fatal: Fatal errors (exits process)
//
// Example Usage:
//
//	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Server starting", zap.String("port", "8090"))
//	logger.Error("Failed to start", zap.Error(err))
package logging
