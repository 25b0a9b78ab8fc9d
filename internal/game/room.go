// internal/game/room.go
package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRoomName is the well-known room clients land in when they do not name one.
	DefaultRoomName = "default"

	DefaultCols = 30
	DefaultRows = 18

	// CandidateCount is how many target cells the cue-giver may pick from each round.
	CandidateCount = 4
)

// Phase is the stage of the current round.
type Phase string

const (
	PhaseLobby  Phase = "lobby"
	PhaseCue1   Phase = "cue1"
	PhaseGuess1 Phase = "guess1"
	PhaseCue2   Phase = "cue2"
	PhaseGuess2 Phase = "guess2"
	PhaseReveal Phase = "reveal"
)

// Player is a participant of one room. Players are owned by their Room.
type Player struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Score int       `json:"score"`
}

// Room holds the authoritative state of a single game instance.
//
// Room does no locking of its own; callers serialize access (see internal/hub).
type Room struct {
	Name        string
	Round       int
	Cols        int
	Rows        int
	CueGiverIdx int
	Phase       Phase

	Cue1   *string
	Cue2   *string
	Target *int

	// Candidates are the cells the cue-giver may choose the target from. Cleared once a choice is made.
	Candidates []int

	Players []*Player

	GuessedOnce   map[uuid.UUID]bool
	GuessedTwice  map[uuid.UUID]bool
	FirstGuesses  map[uuid.UUID]int
	SecondGuesses map[uuid.UUID]int

	rng *rand.Rand
}

// NewRoom builds a room in the lobby phase with the default grid.
// A nil rng is replaced by a time-seeded source.
func NewRoom(name string, rng *rand.Rand) *Room {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	r := &Room{Name: name, rng: rng}
	r.Reset()
	return r
}

// Reset puts every field back to its lobby default. Only the room name and random source survive.
func (r *Room) Reset() {
	r.Round = 0
	r.Cols = DefaultCols
	r.Rows = DefaultRows
	r.CueGiverIdx = 0
	r.Phase = PhaseLobby
	r.Cue1 = nil
	r.Cue2 = nil
	r.Target = nil
	r.Candidates = nil
	r.Players = nil
	r.clearGuesses()
}

func (r *Room) clearGuesses() {
	r.GuessedOnce = make(map[uuid.UUID]bool)
	r.GuessedTwice = make(map[uuid.UUID]bool)
	r.FirstGuesses = make(map[uuid.UUID]int)
	r.SecondGuesses = make(map[uuid.UUID]int)
}

// AddPlayer appends a new player with a fresh identity and a zero score.
func (r *Room) AddPlayer(name string) *Player {
	p := &Player{ID: uuid.New(), Name: name}
	r.Players = append(r.Players, p)
	return p
}

// RemovePlayer drops a player and every guess they made. It keeps the cue-giver index pointing at
// a valid player and advances a guess phase that was only waiting on the leaver.
// removed is false if the player was not in the room; result is set when the removal ended a round.
func (r *Room) RemovePlayer(id uuid.UUID) (removed bool, result *RoundResult) {
	idx := r.playerIndex(id)
	if idx < 0 {
		return false, nil
	}
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	delete(r.GuessedOnce, id)
	delete(r.GuessedTwice, id)
	delete(r.FirstGuesses, id)
	delete(r.SecondGuesses, id)

	if idx < r.CueGiverIdx {
		r.CueGiverIdx--
	}
	if r.CueGiverIdx >= len(r.Players) {
		r.CueGiverIdx = 0
	}

	if len(r.Players) > 0 {
		result = r.advanceIfAllGuessed()
	}
	return true, result
}

// HasPlayer reports whether id is seated in the room.
func (r *Room) HasPlayer(id uuid.UUID) bool {
	return r.playerIndex(id) >= 0
}

func (r *Room) playerIndex(id uuid.UUID) int {
	for i, p := range r.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// CueGiver returns the current cue-giver, or nil for an empty room.
func (r *Room) CueGiver() *Player {
	if r.CueGiverIdx < 0 || r.CueGiverIdx >= len(r.Players) {
		return nil
	}
	return r.Players[r.CueGiverIdx]
}

func (r *Room) isCueGiver(id uuid.UUID) bool {
	cg := r.CueGiver()
	return cg != nil && cg.ID == id
}

// Start begins a new game: scores are zeroed and round one starts with the first player as cue-giver.
func (r *Room) Start() {
	for _, p := range r.Players {
		p.Score = 0
	}
	r.Round = 1
	r.CueGiverIdx = 0
	r.beginRound()
}

// NextRound rotates the cue-giver and starts a fresh round.
func (r *Room) NextRound() {
	r.Round++
	n := len(r.Players)
	if n == 0 {
		n = 1
	}
	r.CueGiverIdx = (r.CueGiverIdx + 1) % n
	r.beginRound()
}

func (r *Room) beginRound() {
	r.Phase = PhaseCue1
	r.Cue1 = nil
	r.Cue2 = nil
	r.Target = nil
	r.Candidates = DrawCandidates(r.rng, r.Cols, r.Rows, CandidateCount)
	r.clearGuesses()
}

// LockCue1 stores the first cue and opens the first guessing phase.
func (r *Room) LockCue1(cue string) {
	r.Cue1 = &cue
	r.Phase = PhaseGuess1
	r.GuessedOnce = make(map[uuid.UUID]bool)
	r.FirstGuesses = make(map[uuid.UUID]int)
}

// LockCue2 stores the second cue and opens the second guessing phase.
func (r *Room) LockCue2(cue string) {
	r.Cue2 = &cue
	r.Phase = PhaseGuess2
	r.GuessedTwice = make(map[uuid.UUID]bool)
	r.SecondGuesses = make(map[uuid.UUID]int)
}

// ChooseTarget lets the cue-giver fix the target among the drawn candidates.
// Any other caller, or an index outside the candidates, is ignored and false is returned.
func (r *Room) ChooseTarget(playerID uuid.UUID, index int) bool {
	if !r.isCueGiver(playerID) {
		return false
	}
	for _, c := range r.Candidates {
		if c == index {
			target := index
			r.Target = &target
			r.Candidates = nil
			return true
		}
	}
	return false
}

// Guess records a guess for the current guessing phase. Outside Guess1/Guess2 it does nothing.
// When every non-cue-giver has guessed the room advances; reaching Reveal scores the round and
// the result is returned.
func (r *Room) Guess(playerID uuid.UUID, cell int) *RoundResult {
	switch r.Phase {
	case PhaseGuess1:
		r.GuessedOnce[playerID] = true
		r.FirstGuesses[playerID] = cell
	case PhaseGuess2:
		r.GuessedTwice[playerID] = true
		r.SecondGuesses[playerID] = cell
	default:
		return nil
	}
	return r.advanceIfAllGuessed()
}

// advanceIfAllGuessed moves Guess1 -> Cue2 or Guess2 -> Reveal once all eligible players are done.
func (r *Room) advanceIfAllGuessed() *RoundResult {
	var done map[uuid.UUID]bool
	switch r.Phase {
	case PhaseGuess1:
		done = r.GuessedOnce
	case PhaseGuess2:
		done = r.GuessedTwice
	default:
		return nil
	}
	for _, p := range r.Players {
		if r.isCueGiver(p.ID) {
			continue
		}
		if !done[p.ID] {
			return nil
		}
	}

	if r.Phase == PhaseGuess1 {
		r.Phase = PhaseCue2
		return nil
	}
	r.Phase = PhaseReveal
	return r.score()
}

// score resolves the target (random when the cue-giver never chose) and awards points.
func (r *Room) score() *RoundResult {
	if r.Target == nil {
		target := r.rng.Intn(r.Cols * r.Rows)
		r.Target = &target
	}
	target := *r.Target

	res := &RoundResult{
		Room:   r.Name,
		Round:  r.Round,
		Target: target,
		Cue1:   deref(r.Cue1),
		Cue2:   deref(r.Cue2),
		At:     time.Now().UTC(),
	}
	if cg := r.CueGiver(); cg != nil {
		res.CueGiver = cg.ID
	}

	for _, p := range r.Players {
		if r.isCueGiver(p.ID) {
			continue
		}
		cell, ok := r.SecondGuesses[p.ID]
		if !ok {
			cell, ok = r.FirstGuesses[p.ID]
		}
		award := PlayerAward{PlayerID: p.ID, Name: p.Name}
		if ok {
			award.Cell = &cell
			award.Points = Points(cell, target, r.Cols)
			p.Score += award.Points
		}
		award.Total = p.Score
		res.Awards = append(res.Awards, award)
	}
	return res
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
