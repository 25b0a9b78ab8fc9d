// internal/hub/messages_test.go
package hub

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/keldurben/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	player := uuid.New()
	tests := []struct {
		name string
		in   string
		want Command
	}{
		{"join with room", `{"type":"join","name":"Alice","room":"r"}`, JoinCommand{Name: "Alice", Room: "r"}},
		{"join without room", `{"type":"join","name":"Bob"}`, JoinCommand{Name: "Bob"}},
		{"start", `{"type":"start_game"}`, StartGameCommand{}},
		{"cue1", `{"type":"lock_cue1","cue":"sky"}`, LockCue1Command{Cue: "sky"}},
		{"cue2", `{"type":"lock_cue2","cue2":"blue"}`, LockCue2Command{Cue2: "blue"}},
		{"guess", `{"type":"guess","cell":10}`, GuessCommand{Cell: 10}},
		{"guess zero", `{"type":"guess","cell":0}`, GuessCommand{Cell: 0}},
		{"next", `{"type":"next_round"}`, NextRoundCommand{}},
		{"choose", `{"type":"choose_target","index":42}`, ChooseTargetCommand{Index: 42}},
		{"reset", `{"type":"admin_reset","secret":"s"}`, AdminResetCommand{Secret: "s"}},
		{"kick", `{"type":"admin_kick","secret":"s","player":"` + player.String() + `","room":"r"}`,
			AdminKickCommand{Secret: "s", Player: player, Room: "r"}},
		{"extra fields ignored", `{"type":"start_game","cue":"ignored"}`, StartGameCommand{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		target error
	}{
		{"unknown type", `{"type":"dance"}`, ErrUnknownType},
		{"no type", `{"name":"x"}`, ErrMissingField},
		{"join without name", `{"type":"join"}`, ErrMissingField},
		{"guess without cell", `{"type":"guess"}`, ErrMissingField},
		{"cue1 without cue", `{"type":"lock_cue1","cue2":"wrong key"}`, ErrMissingField},
		{"kick without player", `{"type":"admin_kick","secret":"s"}`, ErrMissingField},
		{"choose without index", `{"type":"choose_target"}`, ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand([]byte(tt.in))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Contains(t, err.Error(), "bad json")
		})
	}

	for _, in := range []string{
		`not json`,
		`{"type":"guess","cell":"ten"}`,
		`{"type":"guess","cell":-1}`,
		`{"type":"guess","cell":1.5}`,
		`{"type":"admin_kick","secret":"s","player":"not-a-uuid"}`,
	} {
		_, err := DecodeCommand([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestEncodeTagsMessages(t *testing.T) {
	id := uuid.New()
	data, err := Encode(WelcomeMessage{ID: id, Room: "r"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"welcome","id":"`+id.String()+`","room":"r"}`, string(data))

	data, err = Encode(ErrorMessage{Message: "bad json: x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"bad json: x"}`, string(data))

	r := game.NewRoom("r", nil)
	data, err = Encode(StateMessage{State: r.Snapshot()})
	require.NoError(t, err)
	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.JSONEq(t, `"state"`, string(msg["type"]))
	assert.Contains(t, msg, "state")
}
