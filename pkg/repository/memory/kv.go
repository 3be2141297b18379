package memory

import (
	"context"
	"sync"
	"time"

	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
)

type kvEntry struct {
	value     string
	expiresAt time.Time
}

// KV is a process-local KeyValueStore. Expired entries are dropped lazily on
// access and swept on every write.
type KV struct {
	mu      sync.Mutex
	entries map[string]kvEntry
	now     func() time.Time
}

var _ interfaces.KeyValueStore = &KV{}

type KVOption func(*KV)

// WithClock replaces time.Now, for tests that need to move past a TTL
func WithClock(now func() time.Time) KVOption {
	return func(kv *KV) {
		kv.now = now
	}
}

func NewKV(opts ...KVOption) *KV {
	kv := &KV{
		entries: make(map[string]kvEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(kv)
	}
	return kv
}

// lookup must be called with mu held
func (kv *KV) lookup(key string) (kvEntry, bool) {
	e, ok := kv.entries[key]
	if !ok {
		return kvEntry{}, false
	}
	if !kv.now().Before(e.expiresAt) {
		delete(kv.entries, key)
		return kvEntry{}, false
	}
	return e, true
}

// sweep must be called with mu held
func (kv *KV) sweep() {
	now := kv.now()
	for k, e := range kv.entries {
		if !now.Before(e.expiresAt) {
			delete(kv.entries, k)
		}
	}
}

func (kv *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.sweep()
	kv.entries[key] = kvEntry{value: value, expiresAt: kv.now().Add(ttl)}
	return nil
}

func (kv *KV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.sweep()
	if _, ok := kv.lookup(key); ok {
		return false, nil
	}
	kv.entries[key] = kvEntry{value: value, expiresAt: kv.now().Add(ttl)}
	return true, nil
}

func (kv *KV) SetXX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if _, ok := kv.lookup(key); !ok {
		return false, nil
	}
	kv.entries[key] = kvEntry{value: value, expiresAt: kv.now().Add(ttl)}
	return true, nil
}

func (kv *KV) Get(ctx context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	e, ok := kv.lookup(key)
	return e.value, ok, nil
}

func (kv *KV) GetDel(ctx context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	e, ok := kv.lookup(key)
	if ok {
		delete(kv.entries, key)
	}
	return e.value, ok, nil
}

func (kv *KV) Del(ctx context.Context, keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	for _, k := range keys {
		delete(kv.entries, k)
	}
	return nil
}

func (kv *KV) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	e, ok := kv.lookup(key)
	if !ok {
		return false, nil
	}
	e.expiresAt = kv.now().Add(ttl)
	kv.entries[key] = e
	return true, nil
}
