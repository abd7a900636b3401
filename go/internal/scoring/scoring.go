// Package scoring turns pre-event rankings into a community top 3 and scores
// live rankings against it. Every function here is pure.
package scoring

import (
	"sort"

	"github.com/mcdev12/rankparty/go/internal/models"
)

// Points awarded to a choice by its slot in a pre-event ranking.
var positionPoints = [models.RankingSize]int{3, 2, 1}

const (
	hitPoints   = 1
	exactPoints = 2
)

// MaxScore is the best possible result of ScoreSubmission.
const MaxScore = models.RankingSize * (hitPoints + exactPoints)

// Standing is one choice's accumulated pre-event points.
type Standing struct {
	Choice string `json:"choice"`
	Points int    `json:"points"`
}

// Tally sums positional points per choice across all rankings, sorted by
// points descending and choice ascending.
func Tally(rankings []models.Ranking) []Standing {
	points := make(map[string]int)
	for _, r := range rankings {
		for pos, choice := range r {
			if choice == "" {
				continue
			}
			points[choice] += positionPoints[pos]
		}
	}

	standings := make([]Standing, 0, len(points))
	for choice, p := range points {
		standings = append(standings, Standing{Choice: choice, Points: p})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Points != standings[j].Points {
			return standings[i].Points > standings[j].Points
		}
		return standings[i].Choice < standings[j].Choice
	})
	return standings
}

// AggregateCommunityRanking returns the top 3 choices of Tally. Slots stay
// empty when fewer than three choices received points.
func AggregateCommunityRanking(rankings []models.Ranking) models.Top3 {
	var top models.Top3
	for i, s := range Tally(rankings) {
		if i == len(top) {
			break
		}
		top[i] = s.Choice
	}
	return top
}

// ScoreSubmission awards a hit for each submitted choice found anywhere in the
// community top 3, plus a bonus when it sits at the same position.
func ScoreSubmission(sub models.Ranking, top models.Top3) int {
	score := 0
	for pos, choice := range sub {
		if !top.Contains(choice) {
			continue
		}
		score += hitPoints
		if top[pos] == choice {
			score += exactPoints
		}
	}
	return score
}
