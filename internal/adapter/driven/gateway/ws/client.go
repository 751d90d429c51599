package ws

import "github.com/avask/callline/internal/core/domain"

type Client interface {
	UserID() domain.UserID
	SendSignal(msg domain.SignalMessage) error
	Close() error
}
