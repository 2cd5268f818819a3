package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deriv-labs/fraud-triage/config"
)

// Client wraps a go-redis client with the Streams operations the
// Event Source Adapter and AI Queue Producer need.
type Client struct {
	c *redis.Client
}

// New creates a Redis client from the provided config. Returns an error
// if the Redis URL cannot be parsed.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	r := redis.NewClient(opt)
	return &Client{c: r}, nil
}

// Wrap adapts an already-constructed *redis.Client (e.g. one pointed at
// miniredis in tests).
func Wrap(c *redis.Client) *Client {
	return &Client{c: c}
}

func (r *Client) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.c.Ping(ctx).Err()
}

func (r *Client) Close() error {
	return r.c.Close()
}

// StreamMessage is one record read off a stream.
type StreamMessage struct {
	ID     string
	Fields map[string]interface{}
}

// EnsureGroup creates the consumer group for stream, starting at the
// given cursor ("$" = latest, "0" = beginning). Idempotent — a
// BUSYGROUP error (group already exists) is swallowed.
func (r *Client) EnsureGroup(ctx context.Context, stream, group, start string) error {
	err := r.c.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// ReadBatch pulls up to count pending-or-new records for (group, consumer)
// from stream, blocking up to blockFor for new data. The consumer's own
// pending (delivered but unacked) records are re-read first; new records
// are read only when none are pending. An empty result is returned, not
// an error, when nothing is available.
func (r *Client) ReadBatch(ctx context.Context, stream, group, consumer string, count int64, blockFor time.Duration) ([]StreamMessage, error) {
	for _, start := range []string{"0", ">"} {
		args := &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, start},
			Count:    count,
			Block:    -1,
		}
		if start == ">" {
			args.Block = blockFor
		}
		res, err := r.c.XReadGroup(ctx, args).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		if len(res) == 0 || len(res[0].Messages) == 0 {
			continue
		}
		out := make([]StreamMessage, 0, len(res[0].Messages))
		for _, m := range res[0].Messages {
			out = append(out, StreamMessage{ID: m.ID, Fields: m.Values})
		}
		return out, nil
	}
	return nil, nil
}

// Ack removes id from the group's pending list.
func (r *Client) Ack(ctx context.Context, stream, group, id string) error {
	return r.c.XAck(ctx, stream, group, id).Err()
}

// DeliveryCount returns how many times id has been delivered to group,
// used for poison-record retry accounting. Returns 0 if the entry is
// not currently pending (already acked, or never delivered).
func (r *Client) DeliveryCount(ctx context.Context, stream, group, id string) (int64, error) {
	res, err := r.c.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, err
	}
	for _, p := range res {
		if p.ID == id {
			return p.RetryCount, nil
		}
	}
	return 0, nil
}

// Add publishes fields onto stream and returns the assigned record id.
func (r *Client) Add(ctx context.Context, stream string, fields map[string]interface{}) (string, error) {
	return r.c.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: fields,
	}).Result()
}
