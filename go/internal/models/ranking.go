package models

// RankingSize is the number of ranked slots in every ranking.
const RankingSize = 3

// Ranking is an ordered pick of three choices. A choice is a participant ID
// string, or an option label for questions with fixed options.
type Ranking [RankingSize]string

// Top3 is the community consensus. An empty slot never matches a choice.
type Top3 [RankingSize]string

// Contains reports whether choice occupies any non-empty slot.
func (t Top3) Contains(choice string) bool {
	if choice == "" {
		return false
	}
	for _, c := range t {
		if c == choice {
			return true
		}
	}
	return false
}
