package redis

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
)

// KV is a KeyValueStore on a single Redis node. GetDel and SET NX are native
// atomic commands there.
type KV struct {
	rdb       *goredis.Client
	keyPrefix string
}

var _ interfaces.KeyValueStore = &KV{}

type Option func(*KV)

// WithKeyPrefix namespaces every key, so several deployments can share a node
func WithKeyPrefix(prefix string) Option {
	return func(kv *KV) {
		kv.keyPrefix = prefix
	}
}

// New connects to addr and pings it before returning
func New(ctx context.Context, addr string, opts ...Option) (*KV, error) {
	if addr == "" {
		return nil, goerr.New("redis address is required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, goerr.Wrap(err, "failed to ping redis", goerr.V("addr", addr))
	}

	kv := &KV{rdb: rdb}
	for _, opt := range opts {
		opt(kv)
	}
	return kv, nil
}

func (kv *KV) key(k string) string {
	return kv.keyPrefix + k
}

func (kv *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := kv.rdb.Set(ctx, kv.key(key), value, ttl).Err(); err != nil {
		return goerr.Wrap(err, "failed to set key", goerr.V("key", key))
	}
	return nil
}

func (kv *KV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := kv.rdb.SetNX(ctx, kv.key(key), value, ttl).Result()
	if err != nil {
		return false, goerr.Wrap(err, "failed to set key if absent", goerr.V("key", key))
	}
	return ok, nil
}

func (kv *KV) SetXX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := kv.rdb.SetXX(ctx, kv.key(key), value, ttl).Result()
	if err != nil {
		return false, goerr.Wrap(err, "failed to set existing key", goerr.V("key", key))
	}
	return ok, nil
}

func (kv *KV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := kv.rdb.Get(ctx, kv.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get key", goerr.V("key", key))
	}
	return v, true, nil
}

func (kv *KV) GetDel(ctx context.Context, key string) (string, bool, error) {
	v, err := kv.rdb.GetDel(ctx, kv.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get and delete key", goerr.V("key", key))
	}
	return v, true, nil
}

func (kv *KV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = kv.key(k)
	}
	if err := kv.rdb.Del(ctx, prefixed...).Err(); err != nil {
		return goerr.Wrap(err, "failed to delete keys", goerr.V("keys", keys))
	}
	return nil
}

func (kv *KV) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := kv.rdb.Expire(ctx, kv.key(key), ttl).Result()
	if err != nil {
		return false, goerr.Wrap(err, "failed to reset expiry", goerr.V("key", key))
	}
	return ok, nil
}

func (kv *KV) Close() error {
	return kv.rdb.Close()
}
