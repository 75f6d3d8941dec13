// Package ratelimit provides fixed-window request counters keyed by caller.
//
// Two implementations exist: a Redis-backed one for multi-instance
// deployments, and an in-process one that preserves the original
// single-instance behavior when no shared store is configured.
package ratelimit

import "context"

// Limiter answers whether the caller identified by key may proceed. The
// window resets a fixed duration after the first request that opened it.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
