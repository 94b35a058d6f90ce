package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/logkit/errors"
)

type fakePusher struct {
	key    string
	values []any
	err    error
}

func (p *fakePusher) RPush(_ context.Context, key string, values ...any) *redis.IntCmd {
	p.key = key
	p.values = append(p.values, values...)
	return redis.NewIntResult(int64(len(p.values)), p.err)
}

func TestRedisWriter(t *testing.T) {
	client := &fakePusher{}
	w, err := newRedisWriter(Options{"client": client, "key": "app:logs"})
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), testRecord("pushed")))
	require.NoError(t, w.Close())

	assert.Equal(t, "app:logs", client.key)
	require.Len(t, client.values, 1)
	payload, ok := client.values[0].([]byte)
	require.True(t, ok)
	assert.JSONEq(t, `{
		"time": "2024-03-01T12:00:00Z",
		"level": "info",
		"logger": "Application.Frontend",
		"message": "pushed",
		"fields": {"user": "u-1"}
	}`, string(payload))
}

func TestRedisWriterPushError(t *testing.T) {
	w := NewRedisWriter(&fakePusher{err: errors.New("connection refused")}, "logs")
	err := w.Write(context.Background(), testRecord("lost"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestRedisWriterOwnsDialedClient(t *testing.T) {
	w, err := newRedisWriter(Options{"addr": "127.0.0.1:1"})
	require.NoError(t, err)
	rw := w.(*RedisWriter)
	assert.NotNil(t, rw.owned)
	assert.Equal(t, "logs", rw.key)
	require.NoError(t, w.Close())
}

func TestRedisWriterRejectsUnknownClient(t *testing.T) {
	_, err := newRedisWriter(Options{"client": "redis"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalid))
}
