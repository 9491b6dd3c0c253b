package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

const receivePollTimeout = 5 * time.Second

// RedisQueue shares dispatched task ids between processes through a Redis list.
type RedisQueue struct {
	rdb *goredis.Client
	key string
	log *logger.Logger
}

func NewRedisQueue(ctx context.Context, addr, key string, log *logger.Logger) (*RedisQueue, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	if key == "" {
		key = "fusion:import-tasks"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisQueue{rdb: rdb, key: key, log: log.With("service", "RedisQueue")}, nil
}

func (q *RedisQueue) Dispatch(ctx context.Context, taskID string) error {
	if err := q.rdb.LPush(ctx, q.key, taskID).Err(); err != nil {
		return fmt.Errorf("enqueue task %s: %w", taskID, err)
	}
	return nil
}

// Receive polls with BRPOP so a cancelled ctx is observed within receivePollTimeout.
func (q *RedisQueue) Receive(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, err := q.rdb.BRPop(ctx, receivePollTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if errors.Is(err, goredis.ErrClosed) {
				return "", domain.ErrQueueClosed
			}
			return "", fmt.Errorf("dequeue task: %w", err)
		}
		if len(res) == 2 {
			return res[1], nil
		}
		q.log.Warn("unexpected brpop reply", "reply", res)
	}
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
