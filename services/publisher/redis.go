package publisher

import (
	"context"

	"github.com/redis/go-redis/v9"

	"sjsage522/flightdealworker/logger"
	"sjsage522/flightdealworker/pkg/errors"
)

// RedisPublisher implements Publisher using a Redis stream
type RedisPublisher struct {
	client          *redis.Client
	stream          string
	streamMaxLength int64
	log             *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher. A non-positive max length
// disables trimming.
func NewRedisPublisher(addr string, db int, stream string, streamMaxLength int64) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		stream:          stream,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher().WithField("stream", stream),
	}
}

// Stream returns the stream name messages are appended to
func (p *RedisPublisher) Stream() string {
	return p.stream
}

// Ping checks the connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish appends the message as JSON text, trimming the stream as it goes
func (p *RedisPublisher) Publish(ctx context.Context, key string, message []byte) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			key: string(message),
		},
	}
	if p.streamMaxLength > 0 {
		args.MaxLen = p.streamMaxLength
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		p.log.Error().Err(err).Str("key", key).Msg("Failed to publish message")
		return errors.NewNotification("redis", "publish to stream "+p.stream, err)
	}
	p.log.Debug().Str("key", key).Str("id", id).Msg("Published message")
	return nil
}

// TrimStreams trims the stream to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}
	trimmed, err := p.client.XTrimMaxLen(ctx, p.stream, p.streamMaxLength).Result()
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to trim stream")
		return errors.NewNotification("redis", "trim stream "+p.stream, err)
	}
	if trimmed > 0 {
		p.log.Debug().Int64("trimmed", trimmed).Msg("Trimmed stream")
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
