package engine

import "errors"

// Sentinel errors reported by the engine. Callers match them with
// errors.Is; everything else the engine returns wraps an underlying
// I/O or codec failure.
var (
	// ErrKeyNotFound is returned by Remove when the key is absent. The
	// message is the exact text printed by the CLIs and carried in wire
	// error responses.
	ErrKeyNotFound = errors.New("Key not found")

	// ErrInvalidLogRecord means a byte range the index identified as a
	// Set record decoded to something else. It indicates log corruption
	// or a stale index.
	ErrInvalidLogRecord = errors.New("invalid log file command")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("engine is closed")
)
