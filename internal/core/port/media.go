package port

import (
	"context"

	"github.com/avask/callline/internal/core/domain"
)

// ConnState is the reduced connection-state view the call core needs.
// Disconnected is transient and not necessarily fatal; Failed is
// terminal and must end the call.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnConnected
	ConnDisconnected
	ConnFailed
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MediaObserver receives connection events from a media session. The
// call session implements it; tests use a recording fake.
type MediaObserver interface {
	ConnStateChanged(session domain.SessionID, state ConnState)
	LocalCandidate(session domain.SessionID, cand domain.CandidatePayload)
}

// MediaSession wraps exactly one peer connection and its local media
// for the duration of one call.
type MediaSession interface {
	// Setup acquires local media (audio always, video for video calls)
	// and prepares a fresh connection. Acquisition failures wrap
	// *domain.MediaAccessError and must abort call setup.
	Setup(ctx context.Context, callType domain.CallType, session domain.SessionID) error

	// CreateOffer produces the local session description. Valid only
	// after Setup.
	CreateOffer(ctx context.Context) (string, error)

	// HandleOffer sets the remote description, flushes any buffered
	// candidates, and returns the local answer.
	HandleOffer(ctx context.Context, remoteSDP string) (string, error)

	// HandleAnswer sets the remote description on the offering side
	// and flushes buffered candidates.
	HandleAnswer(ctx context.Context, remoteSDP string) error

	// AddCandidate applies a remote candidate, buffering it if the
	// remote description is not set yet. Buffered candidates are
	// flushed in arrival order.
	AddCandidate(cand domain.CandidatePayload) error

	// ToggleAudio and ToggleVideo flip or force the enabled flag on
	// the local track and return the resulting enabled state. No-op
	// (false) when the track does not exist.
	ToggleAudio(on *bool) bool
	ToggleVideo(on *bool) bool

	// Cleanup stops local media, closes the connection and clears all
	// buffers. Idempotent, callable from any state including before
	// Setup.
	Cleanup()
}

// MediaSource acquires local tracks. Separated out so the engine does
// not depend on any particular capture backend.
type MediaSource interface {
	// Capture returns local audio (and video when asked) tracks.
	// Failures are wrapped as *domain.MediaAccessError by the caller.
	Capture(video bool) ([]LocalTrack, error)
}

// LocalTrack is the minimal view of a local media track: its kind and
// an enable switch used by the toggle operations.
type LocalTrack interface {
	Kind() string // "audio" or "video"
	SetEnabled(on bool)
	Enabled() bool
	Close() error
}
