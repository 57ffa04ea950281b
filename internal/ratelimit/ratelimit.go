// Package ratelimit defines the rate-limiting abstraction consumed by the
// Task Engine's instant-mode path (§4.4, §9: "dynamic imports... replace
// with interface abstractions passed at construction"). The package ships
// Noop and the in-process SlidingWindow (sliding.go); callers inject a
// Limiter at construction.
package ratelimit

import "context"

// Limiter reports whether a caller may proceed under a named bucket
// (typically "instant_create:<userID>" or "instant_accept:<userID>").
// Implementations decide their own algorithm (token bucket, sliding
// window, ...); the Task Engine only needs the allow/deny answer.
type Limiter interface {
	Allow(ctx context.Context, bucket string) (bool, error)
}

// Noop always allows. Useful as a default when rate limiting is disabled
// in configuration, or in tests that don't exercise the limit path.
type Noop struct{}

func (Noop) Allow(ctx context.Context, bucket string) (bool, error) { return true, nil }
