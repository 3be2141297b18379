package config

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/repository/firestore"
	"github.com/secmon-lab/gyges/pkg/repository/memory"
	"github.com/secmon-lab/gyges/pkg/repository/redis"
	"github.com/secmon-lab/gyges/pkg/service/dedup"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for the repository and key/value backends
type Repository struct {
	backend      string
	projectID    string
	databaseID   string
	kvBackend    string
	redisAddr    string
	redisPrefix  string
	dedupBackend string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (firestore or memory)",
			Category:    "Repository",
			Value:       "firestore",
			Sources:     cli.EnvVars("GYGES_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("GYGES_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("GYGES_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "kv-backend",
			Usage:       "Key/value store for pending actions (repository or redis)",
			Category:    "Repository",
			Value:       "repository",
			Sources:     cli.EnvVars("GYGES_KV_BACKEND"),
			Destination: &r.kvBackend,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (host:port) when kv-backend is redis",
			Category:    "Repository",
			Sources:     cli.EnvVars("GYGES_REDIS_ADDR"),
			Destination: &r.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-key-prefix",
			Usage:       "Prefix for every Redis key",
			Category:    "Repository",
			Value:       "gyges:",
			Sources:     cli.EnvVars("GYGES_REDIS_KEY_PREFIX"),
			Destination: &r.redisPrefix,
		},
		&cli.StringFlag{
			Name:        "dedup-backend",
			Usage:       "Event deduplication (local or shared). shared uses the key/value store",
			Category:    "Repository",
			Value:       "local",
			Sources:     cli.EnvVars("GYGES_DEDUP_BACKEND"),
			Destination: &r.dedupBackend,
		},
	}
}

func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.String("project_id", r.projectID),
		slog.String("database_id", r.databaseID),
		slog.String("kv_backend", r.kvBackend),
		slog.String("redis_addr", r.redisAddr),
		slog.String("dedup_backend", r.dedupBackend),
	)
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// Configure initializes and returns a repository based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	var repo interfaces.Repository
	switch r.backend {
	case "firestore":
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend")
		}
		fs, err := firestore.New(ctx, r.projectID, r.databaseID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		repo = fs

	case "memory":
		logging.Default().Info("Using in-memory repository (development mode)")
		repo = memory.New()

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid repository backend", goerr.V("backend", r.backend))
	}

	switch r.kvBackend {
	case "", "repository":
		return repo, nil

	case "redis":
		kv, err := redis.New(ctx, r.redisAddr, redis.WithKeyPrefix(r.redisPrefix))
		if err != nil {
			_ = repo.Close()
			return nil, goerr.Wrap(err, "failed to initialize redis key/value store")
		}
		logging.Default().Info("Using Redis key/value store", "addr", r.redisAddr)
		return &withKV{Repository: repo, kv: kv}, nil

	default:
		_ = repo.Close()
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid kv backend", goerr.V("backend", r.kvBackend))
	}
}

// Deduplicator returns the event deduplicator for the configured backend
func (r *Repository) Deduplicator(repo interfaces.Repository) (dedup.Deduplicator, error) {
	switch r.dedupBackend {
	case "", "local":
		return dedup.NewCache(), nil
	case "shared":
		return dedup.NewShared(repo.KV(), ""), nil
	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid dedup backend", goerr.V("backend", r.dedupBackend))
	}
}

// withKV swaps the key/value store of a repository
type withKV struct {
	interfaces.Repository
	kv *redis.KV
}

func (x *withKV) KV() interfaces.KeyValueStore {
	return x.kv
}

func (x *withKV) Close() error {
	return errors.Join(x.kv.Close(), x.Repository.Close())
}
