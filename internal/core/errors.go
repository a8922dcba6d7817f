package core

import "errors"

var (
	// ErrRegistryFull is returned when every identity in the byte range is taken.
	ErrRegistryFull = errors.New("registry full")
	// ErrNotFound is returned when no record matches the request.
	ErrNotFound = errors.New("client not found")
	// ErrAddrMismatch is returned when an acknowledgment arrives from a host other than the client's.
	ErrAddrMismatch = errors.New("acknowledgment from foreign host")
	// ErrAlreadyActive is returned when an active client's data address would be replaced.
	ErrAlreadyActive = errors.New("client already active")
	// ErrQueueFull is returned when the fan-out queue is at capacity.
	ErrQueueFull = errors.New("queue full")
)
