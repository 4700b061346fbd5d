package ratelimit

import (
	"context"
	"time"
)

// Limiter counts an event for key and reports whether it fits within max
// events per window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Strategies accepted by New.
const (
	StrategyFixed   = "fixed"
	StrategySliding = "sliding"
)
