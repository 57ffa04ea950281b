package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SlidingWindow is an in-process, per-bucket fixed-window limiter: at most
// Limit calls to Allow succeed per Window, per bucket key. Buckets are kept
// in a bounded LRU the same way the Trust Engine bounds its decision cache,
// so an unbounded set of distinct buckets (e.g. one per user) can't grow
// memory without limit.
type SlidingWindow struct {
	mu     sync.Mutex
	counts *lru.Cache[string, *window]
	limit  int
	window time.Duration
}

type window struct {
	count   int
	resetAt time.Time
}

// NewSlidingWindow builds a limiter allowing limit calls per window, per
// bucket. size bounds the number of distinct buckets tracked concurrently.
func NewSlidingWindow(limit int, window time.Duration, size int) *SlidingWindow {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, *window](size)
	return &SlidingWindow{counts: c, limit: limit, window: window}
}

func (s *SlidingWindow) Allow(ctx context.Context, bucket string) (bool, error) {
	if s.limit <= 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.counts.Get(bucket)
	if !ok || now.After(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(s.window)}
		s.counts.Add(bucket, w)
	}
	if w.count >= s.limit {
		return false, nil
	}
	w.count++
	return true, nil
}
