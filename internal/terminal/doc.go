// Package terminal is the pty-backed session host consumed by the
// supervisor.
//
// Each session is one interactive shell process on a pseudo-terminal. A
// single reader goroutine demultiplexes the pty: output is routed to the
// in-flight command's stream until a unique end-of-command marker line
// appears, at which point the stream is closed and subsequent output (the
// prompt) is discarded. Sessions run at most one command at a time; the
// supervisor's busy flag enforces this, and Execute also rejects a second
// in-flight command.
//
// The marker is injected through printf with the token as an argument, so
// the terminal's echo of the command line never contains the assembled
// marker itself.
package terminal
