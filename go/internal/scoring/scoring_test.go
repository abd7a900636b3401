package scoring

import (
	"math/rand"
	"testing"

	"github.com/mcdev12/rankparty/go/internal/models"
)

func TestAggregateFiveVotersSameTopTwo(t *testing.T) {
	var rankings []models.Ranking
	for i := 0; i < 5; i++ {
		rankings = append(rankings, models.Ranking{"x", "y", ""})
	}

	got := AggregateCommunityRanking(rankings)
	want := models.Top3{"x", "y", ""}
	if got != want {
		t.Fatalf("AggregateCommunityRanking()=%v, want %v", got, want)
	}

	rankings = append(rankings, models.Ranking{"z", "w", "x"})
	got = AggregateCommunityRanking(rankings)
	if got[0] != "x" || got[1] != "y" || got[2] != "z" {
		t.Fatalf("AggregateCommunityRanking()=%v, want [x y z]", got)
	}
}

func TestAggregateTieBreakByChoice(t *testing.T) {
	rankings := []models.Ranking{
		{"bob", "alice", "carol"},
		{"alice", "bob", "carol"},
	}
	want := models.Top3{"alice", "bob", "carol"}
	for i := 0; i < 20; i++ {
		if got := AggregateCommunityRanking(rankings); got != want {
			t.Fatalf("run %d: AggregateCommunityRanking()=%v, want %v", i, got, want)
		}
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	if got := AggregateCommunityRanking(nil); got != (models.Top3{}) {
		t.Fatalf("AggregateCommunityRanking(nil)=%v, want empty", got)
	}
}

func TestAggregateDeterministicUnderShuffle(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	choices := []string{"a", "b", "c", "d", "e", "f"}
	var rankings []models.Ranking
	for i := 0; i < 40; i++ {
		p := rng.Perm(len(choices))
		rankings = append(rankings, models.Ranking{choices[p[0]], choices[p[1]], choices[p[2]]})
	}

	want := AggregateCommunityRanking(rankings)
	for i := 0; i < 10; i++ {
		rng.Shuffle(len(rankings), func(a, b int) { rankings[a], rankings[b] = rankings[b], rankings[a] })
		if got := AggregateCommunityRanking(rankings); got != want {
			t.Fatalf("shuffle %d: AggregateCommunityRanking()=%v, want %v", i, got, want)
		}
	}
}

func TestTallyPoints(t *testing.T) {
	standings := Tally([]models.Ranking{{"x", "y", "z"}, {"y", "x", "q"}})
	want := []Standing{{"x", 5}, {"y", 5}, {"z", 1}, {"q", 1}}
	if len(standings) != len(want) {
		t.Fatalf("Tally() len=%d, want %d", len(standings), len(want))
	}
	// equal points sort by choice ascending
	want[2], want[3] = want[3], want[2]
	for i := range want {
		if standings[i] != want[i] {
			t.Fatalf("Tally()[%d]=%v, want %v", i, standings[i], want[i])
		}
	}
}

func TestScoreSubmission(t *testing.T) {
	cases := []struct {
		name string
		sub  models.Ranking
		top  models.Top3
		want int
	}{
		{"perfect", models.Ranking{"x", "y", "z"}, models.Top3{"x", "y", "z"}, 9},
		{"scenario B", models.Ranking{"x", "y", "z"}, models.Top3{"x", "z", "y"}, 5},
		{"all hits no exact", models.Ranking{"y", "z", "x"}, models.Top3{"x", "y", "z"}, 3},
		{"miss", models.Ranking{"a", "b", "c"}, models.Top3{"x", "y", "z"}, 0},
		{"empty slot never matches", models.Ranking{"x", "", "y"}, models.Top3{"x", "", ""}, 3},
		{"repeated choice counted per slot", models.Ranking{"x", "x", "x"}, models.Top3{"x", "y", "z"}, 5},
	}
	for _, c := range cases {
		if got := ScoreSubmission(c.sub, c.top); got != c.want {
			t.Fatalf("%s: ScoreSubmission(%v, %v)=%d, want %d", c.name, c.sub, c.top, got, c.want)
		}
	}
}

func TestScoreSubmissionBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := []string{"", "a", "b", "c", "d"}
	pick := func() string { return pool[rng.Intn(len(pool))] }
	for i := 0; i < 2000; i++ {
		sub := models.Ranking{pick(), pick(), pick()}
		top := models.Top3{pick(), pick(), pick()}
		if got := ScoreSubmission(sub, top); got < 0 || got > MaxScore {
			t.Fatalf("ScoreSubmission(%v, %v)=%d, outside [0, %d]", sub, top, got, MaxScore)
		}
	}
}
