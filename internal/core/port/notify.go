package port

import "github.com/avask/callline/internal/core/domain"

// CallNotifier is the one-way bridge from call lifecycle transitions to
// the OS call surface and in-app feedback. Pure side-effect sink; it
// exposes no state and its errors are never allowed to affect the call.
type CallNotifier interface {
	IncomingCall(from domain.Participant, callType domain.CallType)
	Ringing(to domain.Participant)
	Connected(with domain.Participant)
	Ended(with domain.Participant, outcome domain.CallOutcome)
	Failed(reason string)
}
