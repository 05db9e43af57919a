package supervisor

import "errors"

var (
	// ErrSessionNotReady means the host never signalled readiness for a
	// fresh session. Fatal for that call only; the session is released.
	ErrSessionNotReady = errors.New("session not ready")

	// ErrDispatchFailed wraps a host rejection of the invocation.
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrUnknownCommand is a lookup miss on the output-retrieval path.
	ErrUnknownCommand = errors.New("unknown command id")

	// ErrUnknownSession is a lookup miss on the session path.
	ErrUnknownSession = errors.New("unknown session id")
)
