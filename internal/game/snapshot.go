// internal/game/snapshot.go
package game

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// GuessPair is a (player, cell) tuple. It is encoded as a two element JSON array.
type GuessPair struct {
	PlayerID uuid.UUID
	Cell     int
}

func (g GuessPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{g.PlayerID, g.Cell})
}

func (g *GuessPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("guess pair: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &g.PlayerID); err != nil {
		return fmt.Errorf("guess pair player: %w", err)
	}
	if err := json.Unmarshal(raw[1], &g.Cell); err != nil {
		return fmt.Errorf("guess pair cell: %w", err)
	}
	return nil
}

// Snapshot is the full room view broadcast to every member after each mutation.
// Target is only populated in the reveal phase.
type Snapshot struct {
	Room          string      `json:"room"`
	Round         int         `json:"round"`
	Cols          int         `json:"cols"`
	Rows          int         `json:"rows"`
	CueGiver      *uuid.UUID  `json:"cue_giver"`
	Phase         Phase       `json:"phase"`
	Cue1          *string     `json:"cue1"`
	Cue2          *string     `json:"cue2"`
	Target        *int        `json:"target,omitempty"`
	SelectOptions []int       `json:"select_options,omitempty"`
	Players       []Player    `json:"players"`
	GuessedOnce   []uuid.UUID `json:"guessed_once"`
	GuessedTwice  []uuid.UUID `json:"guessed_twice"`
	Guesses1      []GuessPair `json:"guesses1"`
	Guesses2      []GuessPair `json:"guesses2"`
	LastGuesses   []GuessPair `json:"last_guesses"`
}

// Snapshot copies the room into its wire view. The copy shares nothing with the room.
func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		Room:         r.Name,
		Round:        r.Round,
		Cols:         r.Cols,
		Rows:         r.Rows,
		Phase:        r.Phase,
		Cue1:         copyString(r.Cue1),
		Cue2:         copyString(r.Cue2),
		Players:      make([]Player, 0, len(r.Players)),
		GuessedOnce:  r.idSet(r.GuessedOnce),
		GuessedTwice: r.idSet(r.GuessedTwice),
		Guesses1:     r.pairs(r.FirstGuesses),
		Guesses2:     r.pairs(r.SecondGuesses),
	}
	s.LastGuesses = s.Guesses2

	if cg := r.CueGiver(); cg != nil {
		id := cg.ID
		s.CueGiver = &id
	}
	if r.Phase == PhaseReveal && r.Target != nil {
		t := *r.Target
		s.Target = &t
	}
	if len(r.Candidates) > 0 {
		s.SelectOptions = append([]int(nil), r.Candidates...)
	}
	for _, p := range r.Players {
		s.Players = append(s.Players, *p)
	}
	return s
}

// idSet lists the ids in seating order first, then any leftovers sorted, so output is stable.
func (r *Room) idSet(set map[uuid.UUID]bool) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	seen := make(map[uuid.UUID]bool, len(set))
	for _, p := range r.Players {
		if set[p.ID] {
			out = append(out, p.ID)
			seen[p.ID] = true
		}
	}
	var rest []uuid.UUID
	for id, ok := range set {
		if ok && !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].String() < rest[j].String() })
	return append(out, rest...)
}

func (r *Room) pairs(m map[uuid.UUID]int) []GuessPair {
	out := make([]GuessPair, 0, len(m))
	seen := make(map[uuid.UUID]bool, len(m))
	for _, p := range r.Players {
		if cell, ok := m[p.ID]; ok {
			out = append(out, GuessPair{PlayerID: p.ID, Cell: cell})
			seen[p.ID] = true
		}
	}
	var rest []GuessPair
	for id, cell := range m {
		if !seen[id] {
			rest = append(rest, GuessPair{PlayerID: id, Cell: cell})
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].PlayerID.String() < rest[j].PlayerID.String() })
	return append(out, rest...)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
