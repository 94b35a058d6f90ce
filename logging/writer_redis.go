package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/leeforge/logkit/errors"
)

// RedisPusher is the part of a redis client the redis writer needs.
type RedisPusher interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
}

type redisOptions struct {
	// Client is an injected RedisPusher. Without one the writer dials Addr.
	Client   any    `mapstructure:"client"`
	Addr     string `mapstructure:"addr" default:"127.0.0.1:6379"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
	Key      string `mapstructure:"key" default:"logs" validate:"required"`
}

type redisEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Logger  string         `json:"logger,omitempty"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// RedisWriter appends JSON-encoded records to a redis list.
type RedisWriter struct {
	client RedisPusher
	owned  *redis.Client
	key    string
}

func newRedisWriter(opts Options) (Writer, error) {
	var o redisOptions
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}

	w := &RedisWriter{key: o.Key}
	switch c := o.Client.(type) {
	case nil:
		w.owned = redis.NewClient(&redis.Options{
			Addr:     o.Addr,
			Password: o.Password,
			DB:       o.Database,
		})
		w.client = w.owned
	case RedisPusher:
		w.client = c
	default:
		return nil, apperrors.NewInvalid("client", fmt.Sprintf("%T", c), "expected a redis client")
	}
	return w, nil
}

// NewRedisWriter pushes records onto key through client.
func NewRedisWriter(client RedisPusher, key string) *RedisWriter {
	return &RedisWriter{client: client, key: key}
}

func (w *RedisWriter) Write(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(redisEntry{
		Time:    rec.Time.Format(time.RFC3339Nano),
		Level:   rec.Level.String(),
		Logger:  rec.Logger,
		Message: rec.Message,
		Fields:  rec.Fields,
	})
	if err != nil {
		return err
	}
	if err := w.client.RPush(ctx, w.key, payload).Err(); err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeExternal, "push log record")
	}
	return nil
}

// Close closes the client only when the writer dialed it itself.
func (w *RedisWriter) Close() error {
	if w.owned == nil {
		return nil
	}
	return w.owned.Close()
}
