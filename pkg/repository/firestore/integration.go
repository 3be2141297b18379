package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const slackIntegrationsCollection = "slack_integrations"

type slackIntegrationDoc struct {
	TeamID      string    `firestore:"team_id"`
	WorkspaceID int64     `firestore:"workspace_id"`
	BotToken    string    `firestore:"bot_token"`
	BotUserID   string    `firestore:"bot_user_id"`
	InstalledAt time.Time `firestore:"installed_at"`
}

type integrationRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.IntegrationRepository = &integrationRepository{}

func newIntegrationRepository(client *firestore.Client) *integrationRepository {
	return &integrationRepository{client: client}
}

func (r *integrationRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(prefixed(r.collectionPrefix, slackIntegrationsCollection))
}

func (r *integrationRepository) GetByTeamID(ctx context.Context, teamID string) (*model.SlackIntegration, error) {
	if teamID == "" {
		return nil, nil
	}

	snap, err := r.collection().Doc(teamID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get slack integration", goerr.V("team_id", teamID))
	}

	var d slackIntegrationDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode slack integration", goerr.V("team_id", teamID))
	}

	return &model.SlackIntegration{
		TeamID:      d.TeamID,
		WorkspaceID: d.WorkspaceID,
		BotToken:    d.BotToken,
		BotUserID:   d.BotUserID,
		InstalledAt: d.InstalledAt,
	}, nil
}

func (r *integrationRepository) Put(ctx context.Context, integration *model.SlackIntegration) error {
	if integration == nil {
		return goerr.New("integration is nil")
	}
	if integration.TeamID == "" {
		return goerr.New("team ID is required")
	}

	d := &slackIntegrationDoc{
		TeamID:      integration.TeamID,
		WorkspaceID: integration.WorkspaceID,
		BotToken:    integration.BotToken,
		BotUserID:   integration.BotUserID,
		InstalledAt: integration.InstalledAt,
	}
	if _, err := r.collection().Doc(integration.TeamID).Set(ctx, d); err != nil {
		return goerr.Wrap(err, "failed to put slack integration", goerr.V("team_id", integration.TeamID))
	}
	return nil
}

func (r *integrationRepository) DeleteByTeamID(ctx context.Context, teamID string) error {
	ref := r.collection().Doc(teamID)
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "integration not found", goerr.V("team_id", teamID))
		}
		return goerr.Wrap(err, "failed to check slack integration", goerr.V("team_id", teamID))
	}

	if _, err := ref.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete slack integration", goerr.V("team_id", teamID))
	}
	return nil
}
