// internal/database/rounds.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/keldurben/internal/game"
)

// InsertRoundResults writes a batch of scored rounds in one transaction.
func (s *Store) InsertRoundResults(ctx context.Context, results []game.RoundResult) error {
	if len(results) == 0 {
		return nil
	}
	q := `INSERT INTO round_results (room, round, target, cue_giver, cue1, cue2, awards, revealed_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	batch := &pgx.Batch{}
	for _, res := range results {
		awards, err := json.Marshal(res.Awards)
		if err != nil {
			return fmt.Errorf("failed to encode awards: %w", err)
		}
		batch.Queue(q, res.Room, res.Round, res.Target, res.CueGiver, res.Cue1, res.Cue2, awards, res.At)
	}

	err := beginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to insert round results: %w", err)
	}
	return nil
}

// RecentRounds returns up to limit rounds for a room, newest first.
func (s *Store) RecentRounds(ctx context.Context, room string, limit int) ([]game.RoundResult, error) {
	q := `SELECT room, round, target, cue_giver, cue1, cue2, awards, revealed_at
	      FROM round_results WHERE room=$1 ORDER BY revealed_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, q, room, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var out []game.RoundResult
	for rows.Next() {
		var res game.RoundResult
		var awards []byte
		if err := rows.Scan(&res.Room, &res.Round, &res.Target, &res.CueGiver, &res.Cue1, &res.Cue2, &awards, &res.At); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		if err := json.Unmarshal(awards, &res.Awards); err != nil {
			return nil, fmt.Errorf("failed to decode awards: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
