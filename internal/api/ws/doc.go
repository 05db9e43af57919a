// Package ws provides WebSocket streaming of live command output.
//
// A client opens a stream for one command id and receives incremental
// output messages as the registry's accumulator catches chunks, followed by
// a final completed message.
//
// Message Types (Server → Client):
//   - output: incremental output text since the previous message
//   - completed: command finished; carries the full accumulated output
//
// An unknown command id is rejected with a plain 404 before the upgrade.
package ws
