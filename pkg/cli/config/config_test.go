package config_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/cli/config"
	"github.com/secmon-lab/gyges/pkg/service/dedup"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

func TestLogger(t *testing.T) {
	t.Run("levels", func(t *testing.T) {
		for in, want := range map[string]slog.Level{
			"debug": slog.LevelDebug,
			"INFO":  slog.LevelInfo,
			"":      slog.LevelInfo,
			"warn":  slog.LevelWarn,
			"error": slog.LevelError,
		} {
			got, err := config.ParseLogLevel(in)
			gt.NoError(t, err)
			gt.Value(t, got).Equal(want)
		}
		_, err := config.ParseLogLevel("loud")
		gt.Error(t, err)
	})

	t.Run("formats", func(t *testing.T) {
		f, err := config.ParseLogFormat("json")
		gt.NoError(t, err)
		gt.Value(t, f).Equal(logging.FormatJSON)
		_, err = config.ParseLogFormat("xml")
		gt.Error(t, err)
	})

	t.Run("file output", func(t *testing.T) {
		prev := logging.Default()
		defer logging.SetDefault(prev)

		cfg := config.NewLoggerForTest("debug", "json", filepath.Join(t.TempDir(), "gyges.log"))
		closer, err := cfg.Configure()
		gt.NoError(t, err).Required()
		closer()
	})
}

func TestRepository_Configure(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest("memory", "", "").Configure(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, repo.KV()).NotNil()
		gt.NoError(t, repo.Close())
	})

	t.Run("firestore requires project", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("firestore", "", "").Configure(ctx)
		gt.True(t, errors.Is(err, config.ErrInvalidConfig))
	})

	t.Run("unknown backends", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("sqlite", "", "").Configure(ctx)
		gt.True(t, errors.Is(err, config.ErrInvalidConfig))

		_, err = config.NewRepositoryForTest("memory", "etcd", "").Configure(ctx)
		gt.True(t, errors.Is(err, config.ErrInvalidConfig))
	})

	t.Run("redis requires address", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("memory", "redis", "").Configure(ctx)
		gt.Error(t, err)
	})
}

func TestRepository_Deduplicator(t *testing.T) {
	ctx := context.Background()
	repo, err := config.NewRepositoryForTest("memory", "", "").Configure(ctx)
	gt.NoError(t, err).Required()

	local, err := config.NewRepositoryForTest("memory", "", "local").Deduplicator(repo)
	gt.NoError(t, err).Required()
	_, ok := local.(*dedup.Cache)
	gt.True(t, ok)

	shared, err := config.NewRepositoryForTest("memory", "", "shared").Deduplicator(repo)
	gt.NoError(t, err).Required()
	_, ok = shared.(*dedup.Shared)
	gt.True(t, ok)

	dup, err := shared.IsDuplicate(ctx, "Ev1")
	gt.NoError(t, err)
	gt.False(t, dup)
	dup, err = shared.IsDuplicate(ctx, "Ev1")
	gt.NoError(t, err)
	gt.True(t, dup)

	_, err = config.NewRepositoryForTest("memory", "", "gossip").Deduplicator(repo)
	gt.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestSlack_Configure(t *testing.T) {
	_, err := config.NewSlackForTest("", "", "").Configure()
	gt.True(t, errors.Is(err, config.ErrInvalidConfig))

	cfg := config.NewSlackForTest("secret", "http://localhost:9999/api/", "status.example.com")
	factory, err := cfg.Configure()
	gt.NoError(t, err).Required()
	gt.Value(t, cfg.SigningSecret()).Equal("secret")
	gt.Value(t, cfg.StatusDomain()).Equal("status.example.com")

	svc, err := factory("xoxb-test")
	gt.NoError(t, err)
	gt.Value(t, svc).NotNil()
}

func TestLLM_Configure(t *testing.T) {
	ctx := context.Background()

	_, err := config.NewLLMForTest("gemini", "", "").Configure(ctx)
	gt.True(t, errors.Is(err, config.ErrInvalidConfig))

	_, err = config.NewLLMForTest("claude", "", "").Configure(ctx)
	gt.True(t, errors.Is(err, config.ErrInvalidConfig))

	_, err = config.NewLLMForTest("llama", "", "").Configure(ctx)
	gt.True(t, errors.Is(err, config.ErrInvalidConfig))

	gt.Array(t, (&config.LLM{}).Flags()).Length(4)
}

func TestSentry_DisabledWithoutDSN(t *testing.T) {
	flush, err := (&config.Sentry{}).Configure("dev")
	gt.NoError(t, err).Required()
	flush()
}
