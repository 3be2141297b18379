package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
)

// ResolvedWorkspace is a tenant together with the Slack installation that
// reached it
type ResolvedWorkspace struct {
	Workspace   *model.Workspace
	Integration *model.SlackIntegration
}

// BotToken returns the installation credential
func (r *ResolvedWorkspace) BotToken() string {
	if r == nil || r.Integration == nil {
		return ""
	}
	return r.Integration.BotToken
}

// WorkspaceResolver maps a Slack team to its workspace and credential
type WorkspaceResolver struct {
	repo interfaces.Repository
}

func NewWorkspaceResolver(repo interfaces.Repository) *WorkspaceResolver {
	return &WorkspaceResolver{repo: repo}
}

// Resolve returns nil without error when the team is not installed, the
// installation has no bot token or its workspace no longer exists.
func (r *WorkspaceResolver) Resolve(ctx context.Context, teamID string) (*ResolvedWorkspace, error) {
	if teamID == "" {
		return nil, nil
	}

	integration, err := r.repo.Integration().GetByTeamID(ctx, teamID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get slack integration", goerr.V("team_id", teamID))
	}
	if integration == nil || integration.BotToken == "" {
		return nil, nil
	}

	ws, err := r.repo.Workspace().Get(ctx, integration.WorkspaceID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get workspace",
			goerr.V("team_id", teamID),
			goerr.V(WorkspaceIDKey, integration.WorkspaceID),
		)
	}
	if ws == nil {
		return nil, nil
	}

	return &ResolvedWorkspace{Workspace: ws, Integration: integration}, nil
}
