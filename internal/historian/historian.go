// internal/historian/historian.go

// Package historian pops scored rounds from a Redis queue and persists them to Postgres in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/keldurben/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RoundStore persists a batch of rounds atomically.
type RoundStore interface {
	InsertRoundResults(ctx context.Context, results []game.RoundResult) error
}

type popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

type Config struct {
	Queue         string
	BatchSize     int
	FlushInterval time.Duration
	// PopTimeout bounds each BLPop so the flush ticker and cancellation are observed.
	// It is capped at FlushInterval.
	PopTimeout time.Duration
}

// Service drains the round queue into the store.
type Service struct {
	client popper
	store  RoundStore
	cfg    Config
	logger *logrus.Logger

	batchMu sync.Mutex
	batch   []game.RoundResult
}

func New(client popper, store RoundStore, cfg Config, logger *logrus.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 3 * time.Second
	}
	// the ticker is only seen between pops
	if cfg.PopTimeout > cfg.FlushInterval {
		cfg.PopTimeout = cfg.FlushInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		client: client,
		store:  store,
		cfg:    cfg,
		logger: logger,
		batch:  make([]game.RoundResult, 0, cfg.BatchSize),
	}
}

// Run pops until ctx is cancelled, then writes out whatever is still batched.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	s.logger.WithField("queue", s.cfg.Queue).Info("historian started")
	defer s.logger.Info("historian stopped")

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			s.Flush(ctx)
		default:
			s.popOnce(ctx)
		}
	}
}

func (s *Service) popOnce(ctx context.Context) {
	res, err := s.client.BLPop(ctx, s.cfg.PopTimeout, s.cfg.Queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			s.logger.WithError(err).Error("BLPop failed")
			// back off so a dead redis does not spin
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		return
	}
	// res[0] is the queue name and res[1] the payload
	if len(res) < 2 {
		return
	}

	var round game.RoundResult
	if err := json.Unmarshal([]byte(res[1]), &round); err != nil {
		s.logger.WithError(err).Warn("invalid round record")
		return
	}
	s.append(ctx, round)
}

func (s *Service) append(ctx context.Context, round game.RoundResult) {
	s.batchMu.Lock()
	s.batch = append(s.batch, round)
	full := len(s.batch) >= s.cfg.BatchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the current batch. A failed batch is logged and dropped.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]game.RoundResult, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.store.InsertRoundResults(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("rounds", len(pending)).Error("failed to flush rounds")
		return
	}
	s.logger.WithField("rounds", len(pending)).Debug("flushed rounds")
}
