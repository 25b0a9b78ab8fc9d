// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/keldurben/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list scored rounds are pushed to.
const DefaultQueueName = "keldurben_rounds"

// Connect builds a client for addr/db and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// pusher is the slice of the redis client the publisher needs.
type pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RoundPublisher hands scored rounds to the historian through a Redis list.
// RecordRound never blocks; Run does the network sends.
type RoundPublisher struct {
	client pusher
	queue  string
	rounds chan game.RoundResult
	logger *logrus.Logger
	done   chan struct{}
}

func NewRoundPublisher(client pusher, queue string, buffer int, logger *logrus.Logger) *RoundPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RoundPublisher{
		client: client,
		queue:  queue,
		rounds: make(chan game.RoundResult, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// RecordRound queues res for publishing. When the buffer is full the round is dropped and logged.
func (p *RoundPublisher) RecordRound(res game.RoundResult) {
	select {
	case p.rounds <- res:
	default:
		p.logger.WithFields(logrus.Fields{
			"room":  res.Room,
			"round": res.Round,
		}).Warn("round publisher backlog full, dropping result")
	}
}

// Run publishes queued rounds until ctx is done, then flushes what is left.
// Done is closed once Run has returned. Run must be called at most once.
func (p *RoundPublisher) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case res := <-p.rounds:
			if err := p.Publish(ctx, res); err != nil {
				p.logger.WithError(err).Error("failed to publish round")
			}
		}
	}
}

// Done reports when Run has finished its shutdown flush.
func (p *RoundPublisher) Done() <-chan struct{} {
	return p.done
}

func (p *RoundPublisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case res := <-p.rounds:
			if err := p.Publish(ctx, res); err != nil {
				p.logger.WithError(err).Error("failed to publish round during shutdown")
			}
		default:
			return
		}
	}
}

// Publish serializes res and pushes it onto the queue.
func (p *RoundPublisher) Publish(ctx context.Context, res game.RoundResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal round result: %w", err)
	}
	if err := p.client.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}
