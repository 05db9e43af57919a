// Package server provides HTTP server setup and initialization for runnerd.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (request ids, CORS, rate limiting, recovery)
//   - Execution core wiring (pty host, session pool, command registry,
//     script staging, orchestrator)
//   - Command retention janitor
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Wire the execution core and start the retention janitor
//  4. Setup HTTP routes and middleware
//  5. Start HTTP server
//  6. Graceful shutdown on signal: drain HTTP, kill pooled sessions
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
