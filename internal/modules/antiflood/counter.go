package antiflood

import (
	"context"
	"sync"
	"time"
)

type Key struct {
	ChatID int64
	UserID int64
}

type Hit struct {
	Count     int
	Triggered bool
}

// Counter owns the flood counters. Hit must update the counter for key atomically.
type Counter interface {
	Hit(ctx context.Context, key Key, now time.Time, window time.Duration, limit int) (Hit, error)
}

const shardCount = 32

type entry struct {
	count       int
	windowStart time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

// MemoryCounter keeps counters in process, locked per shard.
type MemoryCounter struct {
	shards [shardCount]shard
}

func NewMemoryCounter() *MemoryCounter {
	c := &MemoryCounter{}
	for i := range c.shards {
		c.shards[i].entries = make(map[Key]*entry)
	}
	return c
}

func (c *MemoryCounter) shardFor(key Key) *shard {
	h := uint64(key.ChatID)*31 + uint64(key.UserID)
	return &c.shards[h%shardCount]
}

func (c *MemoryCounter) Hit(_ context.Context, key Key, now time.Time, window time.Duration, limit int) (Hit, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.entries[key]
	switch {
	case item == nil:
		item = &entry{count: 1, windowStart: now}
		s.entries[key] = item
	case now.Sub(item.windowStart) > window:
		item.count = 1
		item.windowStart = now
	default:
		item.count++
	}

	if item.count > limit {
		item.count = 0
		return Hit{Count: 0, Triggered: true}, nil
	}
	return Hit{Count: item.count}, nil
}

func (c *MemoryCounter) Count(key Key) int {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if item := s.entries[key]; item != nil {
		return item.count
	}
	return 0
}

// Sweep drops counters whose window started more than maxAge ago.
func (c *MemoryCounter) Sweep(now time.Time, maxAge time.Duration) int {
	removed := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for key, item := range s.entries {
			if now.Sub(item.windowStart) > maxAge {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *MemoryCounter) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Sweep(now, maxAge)
		}
	}
}
