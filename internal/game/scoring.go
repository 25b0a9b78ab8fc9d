// internal/game/scoring.go
package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// pointsByDistance maps a Manhattan distance to the points awarded; anything further scores 0.
var pointsByDistance = map[int]int{0: 3, 1: 2, 2: 1}

// RoundResult summarizes one scored round. It is emitted whenever a room enters Reveal.
type RoundResult struct {
	Room     string        `json:"room"`
	Round    int           `json:"round"`
	Target   int           `json:"target"`
	CueGiver uuid.UUID     `json:"cue_giver"`
	Cue1     string        `json:"cue1"`
	Cue2     string        `json:"cue2"`
	Awards   []PlayerAward `json:"awards"`
	At       time.Time     `json:"at"`
}

// PlayerAward is one guesser's outcome for a round. Cell is nil when the player never guessed.
type PlayerAward struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	Cell     *int      `json:"cell,omitempty"`
	Points   int       `json:"points"`
	Total    int       `json:"total"`
}

// Manhattan returns the grid distance between two row-major cell indices on a cols-wide grid.
func Manhattan(a, b, cols int) int {
	ar, ac := a/cols, a%cols
	br, bc := b/cols, b%cols
	return abs(ar-br) + abs(ac-bc)
}

// Points returns the score for guessing cell guess when the target is target.
func Points(guess, target, cols int) int {
	return pointsByDistance[Manhattan(guess, target, cols)]
}

// DrawCandidates picks k distinct cells uniformly from a cols*rows grid.
// If k exceeds the grid size every cell is returned once.
func DrawCandidates(rng *rand.Rand, cols, rows, k int) []int {
	total := cols * rows
	if total <= 0 || k <= 0 {
		return nil
	}
	if k > total {
		k = total
	}
	// partial Fisher-Yates over a sparse swap table
	swapped := make(map[int]int, k)
	out := make([]int, 0, k)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(total-i)
		vi, ok := swapped[i]
		if !ok {
			vi = i
		}
		vj, ok := swapped[j]
		if !ok {
			vj = j
		}
		swapped[j] = vi
		out = append(out, vj)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
