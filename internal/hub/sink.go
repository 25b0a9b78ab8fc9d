// internal/hub/sink.go
package hub

import "github.com/jason-s-yu/keldurben/internal/game"

// RoundSink receives every scored round. It is called with the hub lock held and must not block.
type RoundSink interface {
	RecordRound(res game.RoundResult)
}

type nopSink struct{}

func (nopSink) RecordRound(game.RoundResult) {}
