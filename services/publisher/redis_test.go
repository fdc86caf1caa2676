package publisher

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/flightdealworker/logger"
	"sjsage522/flightdealworker/pkg/errors"
)

func newTestPublisher(t *testing.T, maxLen int64) (*RedisPublisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	publisher := NewRedisPublisher(mr.Addr(), 0, "test_flightdeals", maxLen)
	t.Cleanup(func() { publisher.Close() })

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return publisher, client
}

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher, client := newTestPublisher(t, 0)
	require.NoError(t, publisher.Ping(ctx))

	err := publisher.Publish(ctx, "new_flight", []byte(`{"destination":"ברלין","price":599}`))
	require.NoError(t, err)

	messages, err := client.XRange(ctx, publisher.Stream(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, `{"destination":"ברלין","price":599}`, messages[0].Values["new_flight"])
}

func TestRedisPublisherMaxLength(t *testing.T) {
	ctx := context.Background()
	publisher, client := newTestPublisher(t, 3)

	for i := 0; i < 5; i++ {
		require.NoError(t, publisher.Publish(ctx, "new_flight", []byte(fmt.Sprintf(`{"n":%d}`, i))))
	}
	require.NoError(t, publisher.TrimStreams(ctx))

	messages, err := client.XRange(ctx, publisher.Stream(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, `{"n":2}`, messages[0].Values["new_flight"], "oldest entries are trimmed")
}

func TestRedisPublisherUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	publisher := NewRedisPublisher(mr.Addr(), 0, "test_flightdeals", 10)
	defer publisher.Close()
	var buf bytes.Buffer
	publisher.log = logger.New(zerolog.New(&buf)).WithField("stream", publisher.Stream())
	mr.Close()

	err := publisher.Publish(context.Background(), "new_flight", []byte("{}"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotification))

	err = publisher.TrimStreams(context.Background())
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "Failed to publish message")
	assert.Contains(t, out, `"key":"new_flight"`)
	assert.Contains(t, out, `"stream":"test_flightdeals"`)
	assert.Contains(t, out, "Failed to trim stream")
}
