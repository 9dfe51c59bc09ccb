// Package cache holds the in-process TTL caches of the bot, such as the
// exchange rates fetched per base currency.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is the read-through surface the rate client depends on.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner drops expired entries and reports how many went away.
type Cleaner interface {
	CleanExpired() int
}

// CleanerFunc adapts a plain eviction function, such as a registry sweep,
// to Cleaner.
type CleanerFunc func() int

func (f CleanerFunc) CleanExpired() int { return f() }

// Janitor sweeps registered caches on an interval until its context ends.
type Janitor struct {
	caches []namedCleaner
}

type namedCleaner struct {
	name string
	c    Cleaner
}

func NewJanitor() *Janitor {
	return &Janitor{}
}

// Register adds c under name, used only for logging.
func (j *Janitor) Register(name string, c Cleaner) {
	j.caches = append(j.caches, namedCleaner{name: name, c: c})
}

// Sweep cleans every registered cache once and returns the total removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	total := 0
	for _, nc := range j.caches {
		n := nc.c.CleanExpired()
		if n > 0 {
			slog.DebugContext(ctx, "Expired cache entries removed", "cache", nc.name, "count", n)
		}
		total += n
	}
	return total
}

// Run sweeps every interval and returns when ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}
