package audit_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/service/audit"
)

func newEntry() *audit.Entry {
	return &audit.Entry{
		PendingActionID: "6f1c2a0e",
		WorkspaceID:     7,
		ActionType:      types.ActionTypeResolveStatusReport,
		UserID:          "U1",
		ChannelID:       "C1",
		Outcome:         types.InteractionExecuted,
		RecordedAt:      time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC),
	}
}

func TestObjectName(t *testing.T) {
	gt.Value(t, audit.ObjectName("audit/", newEntry())).
		Equal("audit/2026/03/04/20260304T050607.008Z_6f1c2a0e.json")
}

func TestMemory(t *testing.T) {
	var m audit.Memory
	gt.NoError(t, m.Record(context.Background(), newEntry())).Required()
	gt.NoError(t, audit.Logger{}.Record(context.Background(), newEntry())).Required()

	entries := m.Entries()
	gt.Array(t, entries).Length(1)
	gt.Value(t, entries[0].Outcome).Equal(types.InteractionExecuted)
}

func TestStorage(t *testing.T) {
	bucket := os.Getenv("TEST_AUDIT_BUCKET")
	if bucket == "" {
		t.Skip("TEST_AUDIT_BUCKET is not set")
	}

	ctx := context.Background()
	s, err := audit.NewStorage(ctx, bucket, "test/")
	gt.NoError(t, err).Required()
	defer func() { gt.NoError(t, s.Close()) }()

	gt.NoError(t, s.Record(ctx, newEntry()))
}

func TestNewStorage_RequiresBucket(t *testing.T) {
	_, err := audit.NewStorage(context.Background(), "", "")
	gt.Error(t, err)
}
