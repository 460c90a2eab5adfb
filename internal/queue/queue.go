// Package queue carries on-demand scrape requests through a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/scraping"
)

const (
	DefaultKey         = "jobintel:scrape-requests"
	defaultPollTimeout = 5 * time.Second
)

// Message is the envelope stored in the list.
type Message struct {
	ID         string           `json:"id"`
	EnqueuedAt time.Time        `json:"enqueuedAt"`
	Request    scraping.Request `json:"request"`
}

// Connect parses redisURL and verifies connectivity.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

type Queue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
	logger      *zap.Logger
	timeNow     func() time.Time
}

func New(client *redis.Client, key string, logger *zap.Logger) *Queue {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		client:      client,
		key:         key,
		pollTimeout: defaultPollTimeout,
		logger:      logger,
		timeNow:     time.Now,
	}
}

// Enqueue appends the request. An empty trigger becomes "queue".
func (q *Queue) Enqueue(ctx context.Context, req scraping.Request) (*Message, error) {
	if req.TriggeredBy == "" {
		req.TriggeredBy = model.TriggerQueue
	}
	if !req.TriggeredBy.Valid() {
		return nil, fmt.Errorf("unknown trigger %q", req.TriggeredBy)
	}

	msg := &Message{
		ID:         uuid.NewString(),
		EnqueuedAt: q.timeNow().UTC(),
		Request:    req,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return nil, fmt.Errorf("push scrape request: %w", err)
	}
	return msg, nil
}

// Dequeue blocks up to timeout for the next message. It returns nil, nil
// when the queue stayed empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Message, error) {
	res, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop scrape request: %w", err)
	}
	// BLPOP replies with the key followed by the value.
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply of %d elements", len(res))
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("decode scrape request: %w", err)
	}
	return &msg, nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

// Consume hands every message to handle until ctx is done. Undecodable
// messages are dropped, handler errors are logged and do not stop the loop.
func (q *Queue) Consume(ctx context.Context, handle func(ctx context.Context, msg *Message) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		msg, err := q.Dequeue(ctx, q.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				q.logger.Warn("dropping malformed scrape request", zap.Error(err))
				continue
			}
			return err
		}
		if msg == nil {
			continue
		}

		log := q.logger.With(zap.String("message_id", msg.ID), zap.Strings("buckets", msg.Request.Buckets))
		log.Info("scrape request received")
		if err := handle(ctx, msg); err != nil {
			log.Error("scrape request failed", zap.Error(err))
		}
	}
}
