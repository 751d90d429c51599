package domain

type CallType string

const (
	CallVoice CallType = "voice"
	CallVideo CallType = "video"
)

// CallState is the lifecycle state of a call session.
// Keep values stable, they appear in logs and client output.
type CallState string

const (
	StateIdle       CallState = "idle"
	StateInitiating CallState = "initiating"
	StateRinging    CallState = "ringing"
	StateConnecting CallState = "connecting"
	StateConnected  CallState = "connected"
	StateEnded      CallState = "ended"
)

// CanTransition reports whether moving from one call state to another is
// a legal lifecycle step. Ended is terminal per session; the session
// resets to idle only after cleanup.
func CanTransition(from, to CallState) bool {
	switch from {
	case StateIdle:
		// caller starting a call, or callee receiving a fresh offer
		return to == StateInitiating || to == StateRinging
	case StateInitiating:
		return to == StateRinging || to == StateEnded
	case StateRinging:
		return to == StateConnecting || to == StateEnded
	case StateConnecting:
		return to == StateConnected || to == StateEnded
	case StateConnected:
		return to == StateEnded
	case StateEnded:
		return to == StateIdle
	default:
		return false
	}
}

// CallOutcome labels how a session ended, for user-facing feedback.
type CallOutcome string

const (
	OutcomeCompleted CallOutcome = "completed"
	OutcomeDeclined  CallOutcome = "declined"
	OutcomeNoAnswer  CallOutcome = "no_answer"
	OutcomeFailed    CallOutcome = "failed"
	OutcomeEnded     CallOutcome = "ended"
)

// Participant is the minimal identity of the other party, looked up
// through the directory port. The call core never mutates profile data.
type Participant struct {
	ID        UserID
	Name      string
	AvatarRef string
}
