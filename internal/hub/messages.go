// internal/hub/messages.go
package hub

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/keldurben/internal/game"
)

// Inbound message tags.
const (
	TypeJoin         = "join"
	TypeStartGame    = "start_game"
	TypeLockCue1     = "lock_cue1"
	TypeLockCue2     = "lock_cue2"
	TypeGuess        = "guess"
	TypeNextRound    = "next_round"
	TypeChooseTarget = "choose_target"
	TypeAdminReset   = "admin_reset"
	TypeAdminKick    = "admin_kick"
)

// Outbound message tags.
const (
	TypeWelcome = "welcome"
	TypeState   = "state"
	TypeError   = "error"
)

var (
	// ErrUnknownType is returned for a well-formed message whose tag is not a known command.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMissingField is returned when a command lacks a required field.
	ErrMissingField = errors.New("missing field")
)

// Command is a decoded client message. The set of implementations is closed.
type Command interface {
	commandType() string
}

type JoinCommand struct {
	Name string
	// Room is empty when the client did not name one.
	Room string
}

type StartGameCommand struct{}

type LockCue1Command struct {
	Cue string
}

type LockCue2Command struct {
	Cue2 string
}

type GuessCommand struct {
	Cell int
}

type NextRoundCommand struct{}

type ChooseTargetCommand struct {
	Index int
}

type AdminResetCommand struct {
	Secret string
	Room   string
}

type AdminKickCommand struct {
	Secret string
	Player uuid.UUID
	Room   string
}

func (JoinCommand) commandType() string         { return TypeJoin }
func (StartGameCommand) commandType() string    { return TypeStartGame }
func (LockCue1Command) commandType() string     { return TypeLockCue1 }
func (LockCue2Command) commandType() string     { return TypeLockCue2 }
func (GuessCommand) commandType() string        { return TypeGuess }
func (NextRoundCommand) commandType() string    { return TypeNextRound }
func (ChooseTargetCommand) commandType() string { return TypeChooseTarget }
func (AdminResetCommand) commandType() string   { return TypeAdminReset }
func (AdminKickCommand) commandType() string    { return TypeAdminKick }

// inboundPacket carries every field any command may use. Pointers tell absent from zero.
type inboundPacket struct {
	Type   string     `json:"type"`
	Name   *string    `json:"name"`
	Room   *string    `json:"room"`
	Cue    *string    `json:"cue"`
	Cue2   *string    `json:"cue2"`
	Cell   *int       `json:"cell"`
	Index  *int       `json:"index"`
	Secret *string    `json:"secret"`
	Player *uuid.UUID `json:"player"`
}

// DecodeCommand parses one text frame into a Command by dispatching on its "type" tag.
func DecodeCommand(data []byte) (Command, error) {
	var p inboundPacket
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("bad json: %w", err)
	}

	switch p.Type {
	case TypeJoin:
		if p.Name == nil {
			return nil, missing(p.Type, "name")
		}
		return JoinCommand{Name: *p.Name, Room: optional(p.Room)}, nil
	case TypeStartGame:
		return StartGameCommand{}, nil
	case TypeLockCue1:
		if p.Cue == nil {
			return nil, missing(p.Type, "cue")
		}
		return LockCue1Command{Cue: *p.Cue}, nil
	case TypeLockCue2:
		if p.Cue2 == nil {
			return nil, missing(p.Type, "cue2")
		}
		return LockCue2Command{Cue2: *p.Cue2}, nil
	case TypeGuess:
		if p.Cell == nil {
			return nil, missing(p.Type, "cell")
		}
		if *p.Cell < 0 {
			return nil, fmt.Errorf("bad json: cell must be non-negative, got %d", *p.Cell)
		}
		return GuessCommand{Cell: *p.Cell}, nil
	case TypeNextRound:
		return NextRoundCommand{}, nil
	case TypeChooseTarget:
		if p.Index == nil {
			return nil, missing(p.Type, "index")
		}
		if *p.Index < 0 {
			return nil, fmt.Errorf("bad json: index must be non-negative, got %d", *p.Index)
		}
		return ChooseTargetCommand{Index: *p.Index}, nil
	case TypeAdminReset:
		if p.Secret == nil {
			return nil, missing(p.Type, "secret")
		}
		return AdminResetCommand{Secret: *p.Secret, Room: optional(p.Room)}, nil
	case TypeAdminKick:
		if p.Secret == nil {
			return nil, missing(p.Type, "secret")
		}
		if p.Player == nil {
			return nil, missing(p.Type, "player")
		}
		return AdminKickCommand{Secret: *p.Secret, Player: *p.Player, Room: optional(p.Room)}, nil
	case "":
		return nil, missing("message", "type")
	default:
		return nil, fmt.Errorf("bad json: %w: %q", ErrUnknownType, p.Type)
	}
}

func missing(msgType, field string) error {
	return fmt.Errorf("bad json: %w %q in %s", ErrMissingField, field, msgType)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ServerMessage is an outbound message. The set of implementations is closed.
type ServerMessage interface {
	messageType() string
}

// WelcomeMessage is sent once to a connection right after it joins.
type WelcomeMessage struct {
	ID   uuid.UUID `json:"id"`
	Room string    `json:"room"`
}

// StateMessage carries the full room snapshot.
type StateMessage struct {
	State game.Snapshot `json:"state"`
}

// ErrorMessage reports a protocol error to the originating connection only.
type ErrorMessage struct {
	Message string `json:"message"`
}

func (WelcomeMessage) messageType() string { return TypeWelcome }
func (StateMessage) messageType() string   { return TypeState }
func (ErrorMessage) messageType() string   { return TypeError }

// Encode renders msg as a tagged JSON object: {"type": ..., <fields>}.
func Encode(msg ServerMessage) ([]byte, error) {
	switch m := msg.(type) {
	case WelcomeMessage:
		return json.Marshal(struct {
			Type string `json:"type"`
			WelcomeMessage
		}{TypeWelcome, m})
	case StateMessage:
		return json.Marshal(struct {
			Type string `json:"type"`
			StateMessage
		}{TypeState, m})
	case ErrorMessage:
		return json.Marshal(struct {
			Type string `json:"type"`
			ErrorMessage
		}{TypeError, m})
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", msg)
	}
}
