package dedup_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/repository/memory"
	"github.com/secmon-lab/gyges/pkg/service/dedup"
)

func runDeduplicatorTest(t *testing.T, newDedup func(t *testing.T) dedup.Deduplicator) {
	t.Helper()

	t.Run("first sighting is new, second is duplicate", func(t *testing.T) {
		d := newDedup(t)
		ctx := context.Background()

		dup, err := d.IsDuplicate(ctx, "Ev001")
		gt.NoError(t, err)
		gt.Bool(t, dup).False()

		dup, err = d.IsDuplicate(ctx, "Ev001")
		gt.NoError(t, err)
		gt.Bool(t, dup).True()

		dup, err = d.IsDuplicate(ctx, "Ev002")
		gt.NoError(t, err)
		gt.Bool(t, dup).False()
	})

	t.Run("concurrent callers have one first writer", func(t *testing.T) {
		d := newDedup(t)
		ctx := context.Background()

		var fresh atomic.Int32
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				dup, err := d.IsDuplicate(ctx, "EvRace")
				if err == nil && !dup {
					fresh.Add(1)
				}
			}()
		}
		wg.Wait()
		gt.Value(t, fresh.Load()).Equal(int32(1))
	})
}

func TestCache(t *testing.T) {
	runDeduplicatorTest(t, func(t *testing.T) dedup.Deduplicator {
		return dedup.NewCache()
	})
}

func TestShared(t *testing.T) {
	runDeduplicatorTest(t, func(t *testing.T) dedup.Deduplicator {
		return dedup.NewShared(memory.NewKV(), "")
	})
}

func TestCache_PurgesAfterWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := dedup.NewCache(dedup.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := range 3 {
		_, err := c.IsDuplicate(ctx, fmt.Sprintf("Ev%d", i))
		gt.NoError(t, err)
	}
	gt.Value(t, c.Len()).Equal(3)

	now = now.Add(dedup.Window + time.Second)
	dup, err := c.IsDuplicate(ctx, "Ev0")
	gt.NoError(t, err)
	gt.Bool(t, dup).False()
	gt.Value(t, c.Len()).Equal(1)
}

func TestShared_ExpiresAfterWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	kv := memory.NewKV(memory.WithClock(func() time.Time { return now }))
	s := dedup.NewShared(kv, "gyges:")
	ctx := context.Background()

	dup, err := s.IsDuplicate(ctx, "Ev1")
	gt.NoError(t, err)
	gt.Bool(t, dup).False()

	_, found, _ := kv.Get(ctx, "gyges:event:Ev1")
	gt.Bool(t, found).True()

	now = now.Add(dedup.Window)
	dup, err = s.IsDuplicate(ctx, "Ev1")
	gt.NoError(t, err)
	gt.Bool(t, dup).False()
}
