package rounds

import (
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/models"
)

// allowedTransitions lists the round status changes that may happen.
// CLOSED -> ACTIVE reopens a round for late submissions.
var allowedTransitions = map[models.RoundStatus][]models.RoundStatus{
	models.RoundStatusWaiting:  {models.RoundStatusActive},
	models.RoundStatusActive:   {models.RoundStatusClosed},
	models.RoundStatusClosed:   {models.RoundStatusActive, models.RoundStatusRevealed},
	models.RoundStatusRevealed: {},
}

// ValidateTransition returns a StateConflict error when a round may not move
// from current to next.
func ValidateTransition(current, next models.RoundStatus) error {
	for _, allowed := range allowedTransitions[current] {
		if allowed == next {
			return nil
		}
	}
	return apperr.Conflictf("invalid round status transition from %s to %s", current, next)
}
