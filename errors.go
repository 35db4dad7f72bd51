package serial

import "errors"

var (
	// ErrNotStarted is returned by data-path operations before Begin or after End.
	ErrNotStarted = errors.New("serial: channel not started")
	// ErrTimeout is returned by ReadByte when nothing arrived within the timeout.
	ErrTimeout = errors.New("serial: read timeout")
	// ErrInvalidConfig wraps line and application configuration errors.
	ErrInvalidConfig = errors.New("serial: invalid configuration")
	// ErrUnsupported is returned by a binding asked for framing it cannot produce.
	ErrUnsupported = errors.New("serial: unsupported line setting")
	// ErrPortClosed is returned by a binding used after Teardown.
	ErrPortClosed = errors.New("serial: port closed")
)
