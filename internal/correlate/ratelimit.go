package correlate

import (
	"hash/fnv"
	"sync"
	"time"

	"netsift/internal/clock"
	"netsift/internal/models"
)

const limiterShards = 16

// RateLimiter suppresses repeat emissions for the same endpoint inside a
// short window. Keys are spread over independently locked shards.
type RateLimiter struct {
	window time.Duration
	clock  clock.Clock
	shards [limiterShards]limiterShard
}

type limiterShard struct {
	mu          sync.Mutex
	last        map[models.Key]time.Time
	lastCleanup time.Time
}

// NewRateLimiter creates a limiter that accepts a key at most once per window.
func NewRateLimiter(window time.Duration, clk clock.Clock) *RateLimiter {
	l := &RateLimiter{window: window, clock: clk}
	now := clk.Now()
	for i := range l.shards {
		l.shards[i].last = make(map[models.Key]time.Time)
		l.shards[i].lastCleanup = now
	}
	return l
}

// Allow reports whether an event for key may pass and, if so, records it
// as the latest accepted one.
func (l *RateLimiter) Allow(key models.Key) bool {
	now := l.clock.Now()
	s := &l.shards[shardOf(key)]

	s.mu.Lock()
	defer s.mu.Unlock()

	// Entries older than the window behave like absent ones; drop them lazily.
	if now.Sub(s.lastCleanup) > cleanupEvery(l.window) {
		for k, t := range s.last {
			if now.Sub(t) >= l.window {
				delete(s.last, k)
			}
		}
		s.lastCleanup = now
	}

	if last, ok := s.last[key]; ok && now.Sub(last) < l.window {
		return false
	}
	s.last[key] = now
	return true
}

// Len returns the number of tracked keys.
func (l *RateLimiter) Len() int {
	n := 0
	for i := range l.shards {
		l.shards[i].mu.Lock()
		n += len(l.shards[i].last)
		l.shards[i].mu.Unlock()
	}
	return n
}

func cleanupEvery(window time.Duration) time.Duration {
	if d := 1200 * window; d > time.Minute {
		return d
	}
	return time.Minute
}

func shardOf(key models.Key) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key.Address))
	h.Write([]byte{0})
	h.Write([]byte(key.Protocol))
	return h.Sum32() % limiterShards
}
