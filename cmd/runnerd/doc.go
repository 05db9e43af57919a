// Package main is the entry point for the runnerd execution service.
//
// runnerd keeps a pool of warm interactive shell sessions and runs
// client-submitted scripts inside them, streaming output back over REST
// and WebSocket.
//
// The server provides:
//   - REST API for script execution and command/session introspection
//   - WebSocket streaming of live command output
//   - Prometheus metrics
//   - Rate limiting and request correlation ids
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./runnerd -port 8090
//
//	# Development mode (colored logs, debug level)
//	./runnerd -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
