package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy rejects a second call attempt while a session is active.
	// Never surfaced to the callee; the caller sees it as no answer.
	ErrBusy = errors.New("call session busy")

	// ErrStaleSignal marks a message referencing a superseded or
	// unknown session. Dropped and logged, never user-visible.
	ErrStaleSignal = errors.New("stale signal")

	// ErrNotActive is returned by operations that require a live call.
	ErrNotActive = errors.New("no active call session")
)

// MediaAccessError wraps a camera/microphone acquisition failure.
// Always aborts call setup; never retried automatically.
type MediaAccessError struct {
	Err error
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("media access: %v", e.Err)
}

func (e *MediaAccessError) Unwrap() error { return e.Err }

// DeliveryError wraps a signaling send failure. The state machine may
// retry once before treating it as a call failure.
type DeliveryError struct {
	Kind SignalKind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s signal: %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ConnectionFailure marks a terminal peer-connection failure. Always
// terminal for the call.
type ConnectionFailure struct {
	Reason string
}

func (e *ConnectionFailure) Error() string {
	return fmt.Sprintf("peer connection failed: %s", e.Reason)
}
