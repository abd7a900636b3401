package rooms

import (
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/models"
)

// allowedTransitions lists the room status changes that may happen.
// LIVE_EVENT -> LIVE_EVENT is a new round starting.
var allowedTransitions = map[models.RoomStatus][]models.RoomStatus{
	models.RoomStatusSetup:     {models.RoomStatusPreEvent, models.RoomStatusLiveEvent},
	models.RoomStatusPreEvent:  {models.RoomStatusLiveEvent},
	models.RoomStatusLiveEvent: {models.RoomStatusLiveEvent, models.RoomStatusCompleted, models.RoomStatusPreEvent},
	models.RoomStatusCompleted: {models.RoomStatusPreEvent},
}

// ValidateTransition returns a StateConflict error when a room may not move
// from current to next.
func ValidateTransition(current, next models.RoomStatus) error {
	for _, allowed := range allowedTransitions[current] {
		if allowed == next {
			return nil
		}
	}
	return apperr.Conflictf("invalid room status transition from %s to %s", current, next)
}

func validStatus(s models.RoomStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}
