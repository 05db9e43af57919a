// Package supervisor runs caller-submitted scripts inside pooled interactive
// shell sessions.
//
// It is built from four pieces:
//   - Pool: live sessions keyed by display-name prefix and working directory,
//     with busy/idle bookkeeping
//   - Registry: durable per-command state (accumulated output, completion
//     signal) fed by one background accumulator per command
//   - Staging: temp script files, removed only once a command truly finishes
//   - Supervisor: the orchestrator that ties them together and races
//     foreground collection against an optional timeout
//
// The underlying session host is abstracted behind the Host interface; the
// in-repo implementation lives in internal/terminal.
package supervisor
