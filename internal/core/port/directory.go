package port

import (
	"context"

	"github.com/avask/callline/internal/core/domain"
)

// Directory is the read-only profile lookup used to label the other
// party. Profile data is owned elsewhere.
type Directory interface {
	Participant(ctx context.Context, id domain.UserID) (domain.Participant, error)
}
