package models

import (
	"time"

	"github.com/google/uuid"
)

// CategorySpecial marks fixed-option questions in the default templates.
const CategorySpecial = "special"

// Question is one prompt of the game, ordered by SortOrder.
type Question struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	Text      string    `json:"text"`
	Category  string    `json:"category"`
	SortOrder int       `json:"sort_order"`
	// FixedOptions replaces the participant pool as ranking targets when set.
	FixedOptions []string  `json:"fixed_options,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasFixedOptions reports whether rankings for q reference option labels.
func (q Question) HasFixedOptions() bool {
	return len(q.FixedOptions) > 0
}
