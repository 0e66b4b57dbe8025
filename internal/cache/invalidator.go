package cache

import (
	"context"
	"time"

	"fitsync/settings-app/internal/config"
	"fitsync/settings-app/internal/logger"

	goredis "github.com/redis/go-redis/v9"
)

// ViewInvalidator drops cached view entries so dependent pages refetch after
// a write. Callers declare the logical keys; the invalidator only deletes.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
	Close() error
}

// redisInvalidator implements ViewInvalidator on a Redis key space.
type redisInvalidator struct {
	rdb *goredis.Client
	log *logger.Logger
}

// NewRedisInvalidator connects to Redis and verifies the connection with a
// ping before returning.
func NewRedisInvalidator(cfg config.RedisConfig, log *logger.Logger) (ViewInvalidator, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &redisInvalidator{
		rdb: rdb,
		log: log.With("component", "ViewInvalidator"),
	}, nil
}

func (i *redisInvalidator) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := i.rdb.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	i.log.Debug("invalidated cached views", "keys", keys)
	return nil
}

func (i *redisInvalidator) Close() error {
	return i.rdb.Close()
}
