package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/cli/config"
)

func TestConfigErrors_SentinelIdentification(t *testing.T) {
	sentinels := []error{
		config.ErrConfigNotFound,
		config.ErrInvalidConfig,
		config.ErrDuplicateID,
		config.ErrUnknownWorkspace,
		config.ErrDuplicateComponent,
		config.ErrMissingName,
	}

	for i, sentinel := range sentinels {
		wrapped := goerr.Wrap(sentinel, "wrapped", goerr.V(config.ConfigPathKey, "seed.toml"))
		gt.True(t, errors.Is(wrapped, sentinel))
		for j, other := range sentinels {
			if i != j {
				gt.False(t, errors.Is(wrapped, other))
			}
		}
	}
}

func TestConfigErrors_Values(t *testing.T) {
	err := goerr.Wrap(config.ErrDuplicateID, "duplicate",
		goerr.V(config.WorkspaceIDKey, int64(7)),
		goerr.V(config.TeamIDKey, "T001"),
	)

	var ge *goerr.Error
	gt.True(t, errors.As(err, &ge))
	values := ge.Values()
	gt.Value(t, values[config.WorkspaceIDKey]).Equal(any(int64(7)))
	gt.Value(t, values[config.TeamIDKey]).Equal(any("T001"))
}
