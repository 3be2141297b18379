package firestore

import (
	"context"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const kvCollection = "kv"

// kvDoc holds one key. expires_at is also the field a Firestore TTL policy
// should be configured on; reads never trust the policy to have run.
type kvDoc struct {
	Value     string    `firestore:"value"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

// KV is a KeyValueStore backed by one Firestore collection. Compound
// operations run in transactions, so GetDel has exactly one winner.
type KV struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.KeyValueStore = &KV{}

func newKV(client *firestore.Client) *KV {
	return &KV{client: client}
}

func (kv *KV) doc(key string) *firestore.DocumentRef {
	return kv.client.Collection(prefixed(kv.collectionPrefix, kvCollection)).Doc(url.PathEscape(key))
}

// live returns the document when it exists and has not expired
func live(snap *firestore.DocumentSnapshot, err error, now time.Time) (*kvDoc, error) {
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}

	var d kvDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode kv document")
	}
	if !now.Before(d.ExpiresAt) {
		return nil, nil
	}
	return &d, nil
}

func (kv *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	d := &kvDoc{Value: value, ExpiresAt: time.Now().Add(ttl).UTC()}
	if _, err := kv.doc(key).Set(ctx, d); err != nil {
		return goerr.Wrap(err, "failed to set key", goerr.V("key", key))
	}
	return nil
}

func (kv *KV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ref := kv.doc(key)

	var written bool
	err := kv.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		written = false
		now := time.Now()
		snap, err := tx.Get(ref)
		current, err := live(snap, err, now)
		if err != nil {
			return err
		}
		if current != nil {
			return nil
		}
		written = true
		return tx.Set(ref, &kvDoc{Value: value, ExpiresAt: now.Add(ttl).UTC()})
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to set key if absent", goerr.V("key", key))
	}
	return written, nil
}

func (kv *KV) SetXX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ref := kv.doc(key)

	var written bool
	err := kv.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		written = false
		now := time.Now()
		snap, err := tx.Get(ref)
		current, err := live(snap, err, now)
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}
		written = true
		return tx.Set(ref, &kvDoc{Value: value, ExpiresAt: now.Add(ttl).UTC()})
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to set existing key", goerr.V("key", key))
	}
	return written, nil
}

func (kv *KV) Get(ctx context.Context, key string) (string, bool, error) {
	snap, err := kv.doc(key).Get(ctx)
	d, err := live(snap, err, time.Now())
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get key", goerr.V("key", key))
	}
	if d == nil {
		return "", false, nil
	}
	return d.Value, true, nil
}

func (kv *KV) GetDel(ctx context.Context, key string) (string, bool, error) {
	ref := kv.doc(key)

	var (
		value string
		found bool
	)
	err := kv.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		value, found = "", false
		snap, err := tx.Get(ref)
		d, err := live(snap, err, time.Now())
		if err != nil {
			return err
		}
		if snap == nil || !snap.Exists() {
			return nil
		}
		// expired documents are removed as well, but reported absent
		if d != nil {
			value, found = d.Value, true
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get and delete key", goerr.V("key", key))
	}
	return value, found, nil
}

func (kv *KV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	bw := kv.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(keys))
	for _, key := range keys {
		job, err := bw.Delete(kv.doc(key))
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue delete", goerr.V("key", key))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to delete key", goerr.V("key", keys[i]))
		}
	}
	return nil
}

func (kv *KV) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ref := kv.doc(key)

	var exists bool
	err := kv.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		exists = false
		now := time.Now()
		snap, err := tx.Get(ref)
		current, err := live(snap, err, now)
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}
		exists = true
		return tx.Update(ref, []firestore.Update{
			{Path: "expires_at", Value: now.Add(ttl).UTC()},
		})
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to reset expiry", goerr.V("key", key))
	}
	return exists, nil
}
