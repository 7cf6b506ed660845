package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/regionalert/internal/core"
)

// DefaultRedisKey is the list holding pending notifications.
const DefaultRedisKey = "regionalert:notifications"

// redisClient is the subset of *redis.Client used by Redis.
type redisClient interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisConfig configures the Redis channel. Addr accepts host:port or a
// redis:// URL.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	Key        string
	PopTimeout time.Duration
}

// Redis is a Channel over a Redis list. Producers LPUSH JSON messages and
// consumers BRPOP them, so delivery order is FIFO per list.
type Redis struct {
	client     redisClient
	key        string
	popTimeout time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*Redis, error) {
	var opts *redis.Options
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		parsed, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedis(client, cfg, logger), nil
}

func newRedis(client redisClient, cfg RedisConfig, logger *slog.Logger) *Redis {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:     client,
		key:        cfg.Key,
		popTimeout: cfg.PopTimeout,
		retryDelay: time.Second,
		logger:     logger,
	}
}

// Publish implements core.Publisher.
func (r *Redis) Publish(ctx context.Context, msg core.NotificationMessage) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	if err := r.client.LPush(ctx, r.key, data).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return ErrChannelClosed
		}
		return fmt.Errorf("lpush %s: %w", r.key, err)
	}
	return nil
}

// Consume implements Channel. Connection errors are logged and retried
// after a short delay.
func (r *Redis) Consume(ctx context.Context, h Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := r.client.BRPop(ctx, r.popTimeout, r.key).Result()
		switch {
		case err == nil:
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, redis.ErrClosed):
			return nil
		default:
			r.logger.Warn("redis pop failed", "key", r.key, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.retryDelay):
			}
			continue
		}

		// BRPOP returns [key, value].
		if len(res) != 2 {
			r.logger.Warn("unexpected redis pop reply", "reply", res)
			continue
		}
		msg, err := decode([]byte(res[1]))
		if err != nil {
			r.logger.Error("dropping undecodable notification", "key", r.key, "error", err)
			continue
		}
		h(ctx, msg)
	}
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
