// Package redis backs the worker's redelivery guard with SET NX claims.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/resilience"
)

const keyPrefix = "tce:submission:"

// claimStore is the subset of *goredis.Client the guard needs.
type claimStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// NewClient connects and pings, failing fast on a wrong URL or unreachable server.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Guard claims a submission id for ttl so a redelivered event is skipped
// while the first delivery is processed or after it succeeded.
type Guard struct {
	store    claimStore
	ttl      time.Duration
	executor *resilience.Executor
}

func NewGuard(store claimStore, ttl time.Duration, executor *resilience.Executor) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{store: store, ttl: ttl, executor: executor}
}

func (g *Guard) Claim(ctx context.Context, key string) (bool, error) {
	call := func(ctx context.Context) (bool, error) {
		return g.store.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	}
	var (
		claimed bool
		err     error
	)
	if g.executor != nil {
		claimed, err = resilience.Call(ctx, g.executor, "redis.claim", call, classifyRedisError)
	} else {
		claimed, err = call(ctx)
	}
	if err != nil {
		return false, resilience.WrapTemporary("redis claim", err, classifyRedisError)
	}
	return claimed, nil
}

// Release drops a claim so a failed submission can be retried by redelivery.
func (g *Guard) Release(ctx context.Context, key string) error {
	if err := g.store.Del(ctx, keyPrefix+key).Err(); err != nil {
		return resilience.WrapTemporary("redis release", err, classifyRedisError)
	}
	return nil
}

var classifyRedisError = resilience.SentinelClassifier([]error{goredis.ErrClosed}, func(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.HasPrefix(msg, "LOADING")
})
