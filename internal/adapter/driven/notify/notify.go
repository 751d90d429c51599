// Package notify bridges call lifecycle transitions to user-visible
// feedback. The engine only ever calls into it; nothing flows back.
package notify

import (
	"github.com/avask/callline/internal/core/domain"
	"github.com/rs/zerolog"
)

// Notifier implements port.CallNotifier on a zerolog logger. The
// terminal client points it at stderr so ring/connect/end lines read
// like OS call-surface events.
type Notifier struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Notifier {
	return &Notifier{log: log}
}

func (n *Notifier) IncomingCall(from domain.Participant, callType domain.CallType) {
	n.log.Info().
		Str("from", from.Name).
		Str("call_type", string(callType)).
		Msg("Incoming call")
}

func (n *Notifier) Ringing(to domain.Participant) {
	n.log.Info().Str("to", to.Name).Msg("Ringing")
}

func (n *Notifier) Connected(with domain.Participant) {
	n.log.Info().Str("with", with.Name).Msg("Call connected")
}

func (n *Notifier) Ended(with domain.Participant, outcome domain.CallOutcome) {
	e := n.log.Info().Str("with", with.Name)
	switch outcome {
	case domain.OutcomeNoAnswer:
		e.Msg("No answer")
	case domain.OutcomeDeclined:
		e.Msg("Call declined")
	case domain.OutcomeFailed:
		e.Msg("Call failed")
	default:
		e.Msg("Call ended")
	}
}

func (n *Notifier) Failed(reason string) {
	n.log.Error().Msg(reason)
}
