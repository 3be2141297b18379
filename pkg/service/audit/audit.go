// Package audit records the terminal outcome of every confirmation decision.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"github.com/secmon-lab/gyges/pkg/utils/safe"
	"google.golang.org/api/option"
)

// Entry is one decision on a pending action
type Entry struct {
	PendingActionID string                   `json:"pending_action_id"`
	WorkspaceID     int64                    `json:"workspace_id"`
	ActionType      types.ActionType         `json:"action_type"`
	Action          json.RawMessage          `json:"action,omitempty"`
	UserID          string                   `json:"user_id"`
	ChannelID       string                   `json:"channel_id"`
	Outcome         types.InteractionOutcome `json:"outcome"`
	Notify          bool                     `json:"notify"`
	Error           string                   `json:"error,omitempty"`
	RecordedAt      time.Time                `json:"recorded_at"`
}

// Recorder persists audit entries. Failures must not change the outcome of
// the decision being recorded.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}

// Logger writes entries to the structured log only
type Logger struct{}

func (Logger) Record(ctx context.Context, entry *Entry) error {
	logging.From(ctx).Info("pending action decided", "audit", entry)
	return nil
}

// Memory keeps entries in process, for tests
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *Memory) Record(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry{}, m.entries...)
}

// Storage writes each entry as a JSON object to a Cloud Storage bucket under
// {prefix}{yyyy}/{mm}/{dd}/{recorded_at}_{pending_action_id}.json
type Storage struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewStorage(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Storage, error) {
	if bucket == "" {
		return nil, goerr.New("audit bucket is required")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}
	return &Storage{client: client, bucket: bucket, prefix: prefix}, nil
}

// ObjectName returns where entry is stored within the bucket
func ObjectName(prefix string, entry *Entry) string {
	at := entry.RecordedAt.UTC()
	return fmt.Sprintf("%s%s/%s_%s.json", prefix, at.Format("2006/01/02"), at.Format("20060102T150405.000Z"), entry.PendingActionID)
}

func (s *Storage) Record(ctx context.Context, entry *Entry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal audit entry", goerr.V("pending_action_id", entry.PendingActionID))
	}

	name := ObjectName(s.prefix, entry)
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(raw); err != nil {
		safe.Close(ctx, w)
		return goerr.Wrap(err, "failed to write audit entry", goerr.V("bucket", s.bucket), goerr.V("object", name))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to close audit entry writer", goerr.V("bucket", s.bucket), goerr.V("object", name))
	}
	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}
