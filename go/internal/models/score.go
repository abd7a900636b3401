package models

import (
	"github.com/google/uuid"
)

// RoundScore is the points one submitter earned in one revealed round.
type RoundScore struct {
	RoundID     uuid.UUID     `json:"round_id"`
	Kind        SubmitterKind `json:"kind"`
	SubmitterID uuid.UUID     `json:"submitter_id"`
	Points      int           `json:"points"`
}

// AggregateScore is a submitter's running total over all revealed rounds.
type AggregateScore struct {
	RoomID       uuid.UUID     `json:"room_id"`
	Kind         SubmitterKind `json:"kind"`
	SubmitterID  uuid.UUID     `json:"submitter_id"`
	Name         string        `json:"name"`
	Total        int           `json:"total"`
	Rank         int           `json:"rank"`
	ThroughRound int           `json:"through_round"`
}
