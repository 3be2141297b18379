package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
)

// Window is how long an event ID is remembered
const Window = 5 * time.Minute

// Deduplicator reports whether an event ID has already been seen in Window.
// The first caller for an ID gets false and records it.
type Deduplicator interface {
	IsDuplicate(ctx context.Context, eventID string) (bool, error)
}

// Cache is the process-local Deduplicator. It is best effort: every instance
// of a scaled-out deployment keeps its own window.
type Cache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

var _ Deduplicator = &Cache{}

type CacheOption func(*Cache)

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, at := range c.seen {
		if now.Sub(at) > Window {
			delete(c.seen, id)
		}
	}

	if _, ok := c.seen[eventID]; ok {
		return true, nil
	}
	c.seen[eventID] = now
	return false, nil
}

// Len returns the number of remembered IDs
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Shared deduplicates across instances through the KeyValueStore that also
// holds pending actions. SETNX gives first-writer-wins across processes.
type Shared struct {
	kv        interfaces.KeyValueStore
	keyPrefix string
}

var _ Deduplicator = &Shared{}

func NewShared(kv interfaces.KeyValueStore, keyPrefix string) *Shared {
	return &Shared{kv: kv, keyPrefix: keyPrefix}
}

func (s *Shared) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	written, err := s.kv.SetNX(ctx, s.keyPrefix+"event:"+eventID, "1", Window)
	if err != nil {
		return false, goerr.Wrap(err, "failed to record event id", goerr.V("event_id", eventID))
	}
	return !written, nil
}
