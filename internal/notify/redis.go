package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"videojobs/internal/infra"
	"videojobs/internal/pipeline"
)

const (
	DefaultChannel = "job_updates"
	statusPrefix   = "job_status:"
)

// ErrNoStatus is returned when no cached state exists for a job.
var ErrNoStatus = errors.New("no cached job status")

type redisWriter interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisNotifier caches the latest state of each job under job_status:<id> and
// broadcasts it on a pub/sub channel.
type RedisNotifier struct {
	client  redisWriter
	channel string
	ttl     time.Duration
}

func NewRedisNotifier(client *redis.Client, channel string, ttl time.Duration) *RedisNotifier {
	return newRedisNotifier(client, channel, ttl)
}

func newRedisNotifier(client redisWriter, channel string, ttl time.Duration) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel, ttl: ttl}
}

func statusKey(jobID string) string { return statusPrefix + jobID }

func (n *RedisNotifier) Publish(ctx context.Context, u pipeline.Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	if err := n.client.Set(ctx, statusKey(u.JobID), payload, n.ttl).Err(); err != nil {
		return fmt.Errorf("cache job status: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish job status: %w", err)
	}
	return nil
}

// LastStatus returns the cached state written by the most recent Publish.
func (n *RedisNotifier) LastStatus(ctx context.Context, jobID string) (pipeline.Update, error) {
	raw, err := n.client.Get(ctx, statusKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return pipeline.Update{}, ErrNoStatus
	}
	if err != nil {
		return pipeline.Update{}, fmt.Errorf("read job status: %w", err)
	}
	var u pipeline.Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return pipeline.Update{}, fmt.Errorf("decode job status: %w", err)
	}
	return u, nil
}

// Relay subscribes to the update channel and forwards every message to sink
// until ctx is cancelled. The API process uses it to feed its EventBus with
// updates published by standalone workers.
func Relay(ctx context.Context, client *redis.Client, channel string, sink pipeline.Notifier, logger infra.Logger) error {
	if channel == "" {
		channel = DefaultChannel
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	logger.Info().Str("channel", channel).Msg("notify: relaying redis updates")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			forward(ctx, []byte(msg.Payload), sink, logger)
		}
	}
}

func forward(ctx context.Context, payload []byte, sink pipeline.Notifier, logger infra.Logger) {
	var u pipeline.Update
	if err := json.Unmarshal(payload, &u); err != nil || u.JobID == "" {
		logger.Warn().Err(err).Msg("notify: drop malformed update")
		return
	}
	if err := sink.Publish(ctx, u); err != nil {
		logger.Warn().Err(err).Str("job_id", u.JobID).Msg("notify: relay failed")
	}
}
