package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// The wire shape carries IDs as strings; a receiver on any stack must
// be able to read them back.
func TestSignalMessageWireShape(t *testing.T) {
	msg, err := NewOffer(NewUserID(), NewUserID(), NewConversationID(), NewSessionID(), "sdp", CallVoice)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"sender_id":"`+msg.SenderID.String()+`"`) {
		t.Fatalf("sender_id not encoded as uuid string: %s", raw)
	}

	var decoded SignalMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.SenderID != msg.SenderID || decoded.SessionID != msg.SessionID || decoded.Kind != SignalOffer {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestOfferRoundTrip(t *testing.T) {
	sender, receiver := NewUserID(), NewUserID()
	conv, session := NewConversationID(), NewSessionID()

	msg, err := NewOffer(sender, receiver, conv, session, "v=0 fake sdp", CallVideo)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != SignalOffer || msg.ID == "" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	payload, err := msg.DecodeOffer()
	if err != nil {
		t.Fatal(err)
	}
	if payload.SDP != "v=0 fake sdp" || payload.CallType != CallVideo {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDecodeRejectsWrongKind(t *testing.T) {
	sender, receiver := NewUserID(), NewUserID()
	conv, session := NewConversationID(), NewSessionID()

	end, err := NewEnd(sender, receiver, conv, session)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := end.DecodeOffer(); err == nil {
		t.Error("expected DecodeOffer to reject an end signal")
	}
	if _, err := end.DecodeAnswer(); err == nil {
		t.Error("expected DecodeAnswer to reject an end signal")
	}
	if _, err := end.DecodeCandidate(); err == nil {
		t.Error("expected DecodeCandidate to reject an end signal")
	}
}

func TestOfferCallTypeDefaultsToVoice(t *testing.T) {
	msg, err := NewOffer(NewUserID(), NewUserID(), NewConversationID(), NewSessionID(), "sdp", "")
	if err != nil {
		t.Fatal(err)
	}
	payload, err := msg.DecodeOffer()
	if err != nil {
		t.Fatal(err)
	}
	if payload.CallType != CallVoice {
		t.Fatalf("expected voice default, got %s", payload.CallType)
	}
}

func TestExpired(t *testing.T) {
	msg, err := NewDecline(NewUserID(), NewUserID(), NewConversationID(), NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	if msg.Expired(time.Now()) {
		t.Error("fresh message should not be expired")
	}
	if !msg.Expired(time.Now().Add(MaxSignalAge + time.Second)) {
		t.Error("old message should be expired")
	}
}
