package confirmation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// TTL bounds the life of both the action record and its thread index. There
// is no other expiry: an unapproved action simply stops being reachable.
const TTL = 300 * time.Second

const (
	actionKeyPrefix = "action:"
	threadKeyPrefix = "thread:"
)

// Store keeps one pending action per thread in a KeyValueStore. All mutation
// goes through Store, Replace and Consume; callers never read-modify-write
// the keys themselves.
type Store struct {
	kv        interfaces.KeyValueStore
	keyPrefix string
	now       func() time.Time
	newID     func() string
}

type Option func(*Store)

// WithKeyPrefix namespaces both key families, e.g. "slack:"
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.keyPrefix = prefix
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(kv interfaces.KeyValueStore, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) actionKey(id string) string {
	return s.keyPrefix + actionKeyPrefix + id
}

func (s *Store) threadKey(threadTS string) string {
	return s.keyPrefix + threadKeyPrefix + threadTS
}

// parse validates a raw record. Invalid records are logged and reported as
// absent; they are never partially trusted.
func (s *Store) parse(ctx context.Context, key, raw string) *model.PendingAction {
	pending, err := model.ParsePendingAction([]byte(raw))
	if err != nil {
		logging.From(ctx).Warn("discarding invalid pending action record",
			"key", key,
			"error", err.Error(),
		)
		return nil
	}
	return pending
}

// Store assigns a fresh ID and creation time to pending, writes the record
// and the thread index, and returns the ID. ID and CreatedAt of the argument
// are ignored.
func (s *Store) Store(ctx context.Context, pending *model.PendingAction) (string, error) {
	if pending == nil {
		return "", goerr.New("pending action is nil")
	}

	record := *pending
	record.ID = s.newID()
	record.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	raw, err := model.MarshalPendingAction(&record)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode pending action")
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.kv.Set(egCtx, s.actionKey(record.ID), string(raw), TTL)
	})
	eg.Go(func() error {
		return s.kv.Set(egCtx, s.threadKey(record.ThreadTS), record.ID, TTL)
	})
	if err := eg.Wait(); err != nil {
		return "", goerr.Wrap(err, "failed to store pending action",
			goerr.V("id", record.ID),
			goerr.V("thread_ts", record.ThreadTS))
	}

	return record.ID, nil
}

// Get reads a pending action without consuming it. Returns nil when missing
// or invalid.
func (s *Store) Get(ctx context.Context, id string) (*model.PendingAction, error) {
	key := s.actionKey(id)
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get pending action", goerr.V("id", id))
	}
	if !found {
		return nil, nil
	}
	return s.parse(ctx, key, raw), nil
}

// Consume atomically reads and deletes the action record. Of any number of
// concurrent calls for one ID, at most one returns the action. The thread
// index is removed afterwards on a best-effort basis.
func (s *Store) Consume(ctx context.Context, id string) (*model.PendingAction, error) {
	key := s.actionKey(id)
	raw, found, err := s.kv.GetDel(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to consume pending action", goerr.V("id", id))
	}
	if !found {
		return nil, nil
	}

	pending := s.parse(ctx, key, raw)
	if pending == nil {
		return nil, nil
	}

	s.dropThreadIndex(ctx, pending.ThreadTS, pending.ID)
	return pending, nil
}

// dropThreadIndex removes the thread index if it still points at id. Errors
// are logged only; the consume that triggered it has already succeeded.
func (s *Store) dropThreadIndex(ctx context.Context, threadTS, id string) {
	logger := logging.From(ctx)
	key := s.threadKey(threadTS)

	current, found, err := s.kv.Get(ctx, key)
	if err != nil {
		logger.Warn("failed to read thread index", "key", key, "error", err.Error())
		return
	}
	if !found || current != id {
		return
	}
	if err := s.kv.Del(ctx, key); err != nil {
		logger.Warn("failed to delete thread index", "key", key, "error", err.Error())
	}
}

// Replace swaps the action of an existing record, refreshes CreatedAt and
// re-applies the TTL to both keys. It reports false and writes nothing when
// id no longer exists, including when it is consumed between the read and
// the write.
func (s *Store) Replace(ctx context.Context, id string, action model.Action) (bool, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	existing.Action = action
	existing.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	raw, err := model.MarshalPendingAction(existing)
	if err != nil {
		return false, goerr.Wrap(err, "failed to encode pending action", goerr.V("id", id))
	}

	written, err := s.kv.SetXX(ctx, s.actionKey(id), string(raw), TTL)
	if err != nil {
		return false, goerr.Wrap(err, "failed to replace pending action", goerr.V("id", id))
	}
	if !written {
		return false, nil
	}

	if _, err := s.kv.Expire(ctx, s.threadKey(existing.ThreadTS), TTL); err != nil {
		return true, goerr.Wrap(err, "failed to refresh thread index", goerr.V("id", id))
	}
	return true, nil
}

// FindByThread resolves the thread index. An index that points at a missing
// record is deleted and reported as absent.
func (s *Store) FindByThread(ctx context.Context, threadTS string) (*model.PendingAction, error) {
	threadKey := s.threadKey(threadTS)
	id, found, err := s.kv.Get(ctx, threadKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read thread index", goerr.V("thread_ts", threadTS))
	}
	if !found {
		return nil, nil
	}

	actionKey := s.actionKey(id)
	raw, found, err := s.kv.Get(ctx, actionKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get pending action", goerr.V("id", id))
	}
	if !found {
		if err := s.kv.Del(ctx, threadKey); err != nil {
			logging.From(ctx).Warn("failed to delete stale thread index", "key", threadKey, "error", err.Error())
		}
		return nil, nil
	}

	return s.parse(ctx, actionKey, raw), nil
}
