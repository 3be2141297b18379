package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
)

type integrationRepository struct {
	mu           sync.RWMutex
	integrations map[string]*model.SlackIntegration
}

var _ interfaces.IntegrationRepository = &integrationRepository{}

func newIntegrationRepository() *integrationRepository {
	return &integrationRepository{
		integrations: make(map[string]*model.SlackIntegration),
	}
}

func (r *integrationRepository) GetByTeamID(ctx context.Context, teamID string) (*model.SlackIntegration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.integrations[teamID]
	if !ok {
		return nil, nil
	}
	copied := *in
	return &copied, nil
}

func (r *integrationRepository) Put(ctx context.Context, integration *model.SlackIntegration) error {
	if integration == nil {
		return goerr.New("integration is nil")
	}
	if integration.TeamID == "" {
		return goerr.New("team ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *integration
	r.integrations[integration.TeamID] = &copied
	return nil
}

func (r *integrationRepository) DeleteByTeamID(ctx context.Context, teamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.integrations[teamID]; !ok {
		return goerr.Wrap(ErrNotFound, "integration not found", goerr.V("team_id", teamID))
	}
	delete(r.integrations, teamID)
	return nil
}
