package domain

import (
	"github.com/google/uuid"
)

type UserID uuid.UUID
type ConversationID uuid.UUID

func NewUserID() UserID {
	return UserID(uuid.New())
}

func NewConversationID() ConversationID {
	return ConversationID(uuid.New())
}

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(id), nil
}

func ParseConversationID(s string) (ConversationID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ConversationID{}, err
	}
	return ConversationID(id), nil
}

func (id UserID) String() string {
	return uuid.UUID(id).String()
}

func (id ConversationID) String() string {
	return uuid.UUID(id).String()
}

func (id UserID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(parsed)
	return nil
}

func (id ConversationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ConversationID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ConversationID(parsed)
	return nil
}

// SessionID correlates every signaling message belonging to one call
// attempt, distinguishing it from any prior or later call between the
// same two users. Generated by the initiating side.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func (s SessionID) String() string {
	return string(s)
}

type MessageID string

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func (m MessageID) String() string {
	return string(m)
}
