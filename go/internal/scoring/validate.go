package scoring

import (
	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/models"
)

// Choices returns the keys a ranking for q may reference: the question's
// fixed options, or the IDs of every participant in the room.
func Choices(q models.Question, participants []models.Participant) map[string]bool {
	choices := make(map[string]bool)
	if q.HasFixedOptions() {
		for _, o := range q.FixedOptions {
			choices[o] = true
		}
		return choices
	}
	for _, p := range participants {
		choices[p.ID.String()] = true
	}
	return choices
}

// ValidateRanking checks that r holds three distinct, non-empty choices from
// choices.
func ValidateRanking(r models.Ranking, choices map[string]bool) error {
	seen := make(map[string]bool, len(r))
	for pos, c := range r {
		if c == "" {
			return apperr.Validationf("rank %d is missing", pos+1)
		}
		if seen[c] {
			return apperr.Validationf("%s is ranked more than once", c)
		}
		seen[c] = true
		if !choices[c] {
			return apperr.Validationf("rank %d references unknown choice %s", pos+1, c)
		}
	}
	return nil
}
