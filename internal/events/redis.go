// Package events publishes round progress to subscribers outside the process.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/khrees2412/jobsift/internal/ingest"
)

const (
	ProgressChannel = "jobsift:progress"
	LastProgressKey = "jobsift:progress:last"

	lastProgressTTL = 24 * time.Hour
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// RedisPublisher pushes every progress snapshot to a pub/sub channel and
// keeps the latest one under a key for late subscribers.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates a publisher on an existing client
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish implements ingest.Publisher
func (p *RedisPublisher) Publish(ctx context.Context, progress ingest.Progress) error {
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, LastProgressKey, payload, lastProgressTTL)
		pipe.Publish(ctx, ProgressChannel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

// Last returns the most recent snapshot, or nil when none is stored
func (p *RedisPublisher) Last(ctx context.Context) (*ingest.Progress, error) {
	payload, err := p.rdb.Get(ctx, LastProgressKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read last progress: %w", err)
	}
	var progress ingest.Progress
	if err := json.Unmarshal(payload, &progress); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &progress, nil
}

// Subscribe streams snapshots until ctx is done
func (p *RedisPublisher) Subscribe(ctx context.Context) <-chan ingest.Progress {
	out := make(chan ingest.Progress)
	sub := p.rdb.Subscribe(ctx, ProgressChannel)
	go func() {
		defer close(out)
		defer sub.Close()
		for msg := range sub.Channel() {
			var progress ingest.Progress
			if err := json.Unmarshal([]byte(msg.Payload), &progress); err != nil {
				continue
			}
			select {
			case out <- progress:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return out
}
