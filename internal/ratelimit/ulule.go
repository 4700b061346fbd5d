package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Fixed is a fixed window limiter on top of a ulule limiter store.
type Fixed struct {
	Store limiter.Store
}

// NewMemoryStore returns a process-local limiter store.
func NewMemoryStore(prefix string) limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: limiter.DefaultCleanUpInterval})
}

// NewRedisStore wires a limiter store shared by every replica through Redis.
func NewRedisStore(client redis.UniversalClient, prefix string) (limiter.Store, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client required")
	}
	return limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
}

// Allow implements Limiter.
func (f Fixed) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lctx, err := limiter.New(f.Store, limiter.Rate{Period: window, Limit: int64(max)}).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}

// New picks a limiter for strategy. The sliding strategy needs Redis; the
// fixed one shares state through Redis when a client is given and falls back
// to process memory otherwise.
func New(strategy string, client redis.UniversalClient, prefix string) (Limiter, error) {
	switch strategy {
	case StrategySliding:
		if client == nil {
			return nil, errors.New("ratelimit: sliding strategy requires redis")
		}
		return SlidingWindow{Client: client, Prefix: prefix}, nil
	case StrategyFixed, "":
		if client == nil {
			return Fixed{Store: NewMemoryStore(prefix)}, nil
		}
		store, err := NewRedisStore(client, prefix)
		if err != nil {
			return nil, err
		}
		return Fixed{Store: store}, nil
	}
	return nil, errors.New("ratelimit: unknown strategy " + strategy)
}
