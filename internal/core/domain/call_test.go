package domain

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to CallState }{
		{StateIdle, StateInitiating},
		{StateIdle, StateRinging},
		{StateInitiating, StateRinging},
		{StateInitiating, StateEnded},
		{StateRinging, StateConnecting},
		{StateRinging, StateEnded},
		{StateConnecting, StateConnected},
		{StateConnecting, StateEnded},
		{StateConnected, StateEnded},
		{StateEnded, StateIdle},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to CallState }{
		{StateIdle, StateConnected},
		{StateConnected, StateRinging},
		{StateEnded, StateConnected},
		{StateRinging, StateInitiating},
		{StateConnecting, StateRinging},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

// Every state reachable from idle must have a path back to idle via
// ended, so no call can strand the client.
func TestNoDeadEndStates(t *testing.T) {
	for _, state := range []CallState{StateInitiating, StateRinging, StateConnecting, StateConnected} {
		if !CanTransition(state, StateEnded) {
			t.Errorf("state %s cannot reach ended", state)
		}
	}
	if !CanTransition(StateEnded, StateIdle) {
		t.Error("ended cannot reset to idle")
	}
}
