package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type SignalKind string

const (
	SignalOffer   SignalKind = "offer"
	SignalAnswer  SignalKind = "answer"
	SignalICE     SignalKind = "ice"
	SignalDecline SignalKind = "decline"
	SignalEnd     SignalKind = "end"
)

// MaxSignalAge bounds how long a signaling message stays meaningful.
// Anything older refers to a call attempt the user has given up on.
const MaxSignalAge = 30 * time.Second

// SignalMessage is the wire shape delivered over the signaling
// transport. Payload is only present for offer, answer and ice; its
// schema is fixed by Kind.
type SignalMessage struct {
	ID             MessageID       `json:"id"`
	Kind           SignalKind      `json:"type"`
	SenderID       UserID          `json:"sender_id"`
	ReceiverID     UserID          `json:"receiver_id"`
	ConversationID ConversationID  `json:"conversation_id"`
	SessionID      SessionID       `json:"session_id"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// OfferPayload carries the initiator's session description plus the
// call type discriminator, fixed for the session once answered.
type OfferPayload struct {
	SDP      string   `json:"sdp"`
	CallType CallType `json:"call_type"`
}

type AnswerPayload struct {
	SDP string `json:"sdp"`
}

// CandidatePayload mirrors the trickle-ICE candidate fields the peer
// connection needs to apply it.
type CandidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
}

type signalHeader struct {
	Sender         UserID
	Receiver       UserID
	ConversationID ConversationID
	SessionID      SessionID
}

func newSignal(kind SignalKind, h signalHeader, payload any) (SignalMessage, error) {
	msg := SignalMessage{
		ID:             NewMessageID(),
		Kind:           kind,
		SenderID:       h.Sender,
		ReceiverID:     h.Receiver,
		ConversationID: h.ConversationID,
		SessionID:      h.SessionID,
		Timestamp:      time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return SignalMessage{}, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

func NewOffer(sender, receiver UserID, conv ConversationID, session SessionID, sdp string, callType CallType) (SignalMessage, error) {
	return newSignal(SignalOffer, signalHeader{sender, receiver, conv, session}, OfferPayload{SDP: sdp, CallType: callType})
}

func NewAnswer(sender, receiver UserID, conv ConversationID, session SessionID, sdp string) (SignalMessage, error) {
	return newSignal(SignalAnswer, signalHeader{sender, receiver, conv, session}, AnswerPayload{SDP: sdp})
}

func NewCandidate(sender, receiver UserID, conv ConversationID, session SessionID, cand CandidatePayload) (SignalMessage, error) {
	return newSignal(SignalICE, signalHeader{sender, receiver, conv, session}, cand)
}

func NewDecline(sender, receiver UserID, conv ConversationID, session SessionID) (SignalMessage, error) {
	return newSignal(SignalDecline, signalHeader{sender, receiver, conv, session}, nil)
}

func NewEnd(sender, receiver UserID, conv ConversationID, session SessionID) (SignalMessage, error) {
	return newSignal(SignalEnd, signalHeader{sender, receiver, conv, session}, nil)
}

// DecodeOffer validates that the message is an offer and returns its
// payload. The zero CallType decodes as voice.
func (m SignalMessage) DecodeOffer() (OfferPayload, error) {
	if m.Kind != SignalOffer {
		return OfferPayload{}, fmt.Errorf("signal %s is not an offer", m.Kind)
	}
	var p OfferPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return OfferPayload{}, fmt.Errorf("decode offer payload: %w", err)
	}
	if p.SDP == "" {
		return OfferPayload{}, fmt.Errorf("offer payload missing sdp")
	}
	if p.CallType == "" {
		p.CallType = CallVoice
	}
	return p, nil
}

func (m SignalMessage) DecodeAnswer() (AnswerPayload, error) {
	if m.Kind != SignalAnswer {
		return AnswerPayload{}, fmt.Errorf("signal %s is not an answer", m.Kind)
	}
	var p AnswerPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return AnswerPayload{}, fmt.Errorf("decode answer payload: %w", err)
	}
	if p.SDP == "" {
		return AnswerPayload{}, fmt.Errorf("answer payload missing sdp")
	}
	return p, nil
}

func (m SignalMessage) DecodeCandidate() (CandidatePayload, error) {
	if m.Kind != SignalICE {
		return CandidatePayload{}, fmt.Errorf("signal %s is not an ice candidate", m.Kind)
	}
	var p CandidatePayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return CandidatePayload{}, fmt.Errorf("decode candidate payload: %w", err)
	}
	return p, nil
}

// Expired reports whether the message is too old to act on.
func (m SignalMessage) Expired(now time.Time) bool {
	return now.Sub(m.Timestamp) > MaxSignalAge
}
