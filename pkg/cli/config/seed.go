package config

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

// Seed declares tenants, their Slack installations and status pages. It
// populates the memory backend and first-run Firestore databases.
type Seed struct {
	Workspaces   []SeedWorkspace   `toml:"workspace"`
	Integrations []SeedIntegration `toml:"slack_integration"`
	Pages        []SeedPage        `toml:"status_page"`
}

type SeedWorkspace struct {
	ID                   int64  `toml:"id"`
	Name                 string `toml:"name"`
	Slug                 string `toml:"slug"`
	StatusSubscribers    bool   `toml:"status_subscribers"`
	NotificationChannels int    `toml:"notification_channels"`
}

type SeedIntegration struct {
	TeamID      string `toml:"team_id"`
	WorkspaceID int64  `toml:"workspace_id"`
	BotToken    string `toml:"bot_token" masq:"secret"`
	BotUserID   string `toml:"bot_user_id"`
}

type SeedPage struct {
	ID           int64           `toml:"id"`
	WorkspaceID  int64           `toml:"workspace_id"`
	Title        string          `toml:"title"`
	Slug         string          `toml:"slug"`
	CustomDomain string          `toml:"custom_domain"`
	Components   []SeedComponent `toml:"component"`
}

type SeedComponent struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// Validate checks ids are unique and every reference resolves
func (s *Seed) Validate() error {
	workspaces := make(map[int64]bool)
	for _, ws := range s.Workspaces {
		if ws.ID <= 0 {
			return goerr.Wrap(ErrInvalidConfig, "workspace id must be positive", goerr.V(WorkspaceIDKey, ws.ID))
		}
		if ws.Name == "" {
			return goerr.Wrap(ErrMissingName, "workspace name is required", goerr.V(WorkspaceIDKey, ws.ID))
		}
		if workspaces[ws.ID] {
			return goerr.Wrap(ErrDuplicateID, "duplicate workspace", goerr.V(WorkspaceIDKey, ws.ID))
		}
		workspaces[ws.ID] = true
	}

	teams := make(map[string]bool)
	for _, in := range s.Integrations {
		if in.TeamID == "" {
			return goerr.Wrap(ErrInvalidConfig, "team_id is required")
		}
		if teams[in.TeamID] {
			return goerr.Wrap(ErrDuplicateID, "duplicate slack integration", goerr.V(TeamIDKey, in.TeamID))
		}
		teams[in.TeamID] = true
		if !workspaces[in.WorkspaceID] {
			return goerr.Wrap(ErrUnknownWorkspace, "slack integration refers to unknown workspace",
				goerr.V(TeamIDKey, in.TeamID), goerr.V(WorkspaceIDKey, in.WorkspaceID))
		}
	}

	pages := make(map[int64]bool)
	components := make(map[string]bool)
	for _, p := range s.Pages {
		if p.ID <= 0 {
			return goerr.Wrap(ErrInvalidConfig, "status page id must be positive", goerr.V(PageIDKey, p.ID))
		}
		if p.Title == "" {
			return goerr.Wrap(ErrMissingName, "status page title is required", goerr.V(PageIDKey, p.ID))
		}
		if pages[p.ID] {
			return goerr.Wrap(ErrDuplicateID, "duplicate status page", goerr.V(PageIDKey, p.ID))
		}
		pages[p.ID] = true
		if !workspaces[p.WorkspaceID] {
			return goerr.Wrap(ErrUnknownWorkspace, "status page refers to unknown workspace",
				goerr.V(PageIDKey, p.ID), goerr.V(WorkspaceIDKey, p.WorkspaceID))
		}
		for _, c := range p.Components {
			if c.ID == "" || c.Name == "" {
				return goerr.Wrap(ErrInvalidConfig, "component id and name are required", goerr.V(PageIDKey, p.ID))
			}
			if components[c.ID] {
				return goerr.Wrap(ErrDuplicateComponent, "component ids must be unique across pages",
					goerr.V(PageIDKey, p.ID), goerr.V(ComponentIDKey, c.ID))
			}
			components[c.ID] = true
		}
	}

	return nil
}

// LoadSeed reads and validates a TOML seed file
func LoadSeed(path string) (*Seed, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "seed file not found", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read seed file", goerr.V(ConfigPathKey, path))
	}

	var seed Seed
	if err := toml.Unmarshal(data, &seed); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML seed",
			goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
	}

	if err := seed.Validate(); err != nil {
		return nil, goerr.Wrap(err, "seed validation failed", goerr.V(ConfigPathKey, path))
	}

	return &seed, nil
}

// Apply writes the seed into repo. Existing records with the same id are
// overwritten.
func (s *Seed) Apply(ctx context.Context, repo interfaces.Repository) error {
	for _, ws := range s.Workspaces {
		if err := repo.Workspace().Put(ctx, &model.Workspace{
			ID:   ws.ID,
			Name: ws.Name,
			Slug: ws.Slug,
			Limits: model.Limits{
				StatusSubscribers:    ws.StatusSubscribers,
				NotificationChannels: ws.NotificationChannels,
			},
		}); err != nil {
			return goerr.Wrap(err, "failed to put workspace", goerr.V(WorkspaceIDKey, ws.ID))
		}
	}

	now := time.Now().UTC()
	for _, in := range s.Integrations {
		if err := repo.Integration().Put(ctx, &model.SlackIntegration{
			TeamID:      in.TeamID,
			WorkspaceID: in.WorkspaceID,
			BotToken:    in.BotToken,
			BotUserID:   in.BotUserID,
			InstalledAt: now,
		}); err != nil {
			return goerr.Wrap(err, "failed to put slack integration", goerr.V(TeamIDKey, in.TeamID))
		}
	}

	for _, p := range s.Pages {
		page := &model.StatusPage{
			ID:           p.ID,
			WorkspaceID:  p.WorkspaceID,
			Title:        p.Title,
			Slug:         p.Slug,
			CustomDomain: p.CustomDomain,
		}
		for _, c := range p.Components {
			page.Components = append(page.Components, model.PageComponent{
				ID:          c.ID,
				WorkspaceID: p.WorkspaceID,
				PageID:      p.ID,
				Name:        c.Name,
			})
		}
		if err := repo.StatusPage().Put(ctx, page); err != nil {
			return goerr.Wrap(err, "failed to put status page", goerr.V(PageIDKey, p.ID))
		}
	}

	return nil
}

// SeedFile is the --config flag
type SeedFile struct {
	path string
}

func (x *SeedFile) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "TOML file declaring workspaces, Slack integrations and status pages",
			Sources:     cli.EnvVars("GYGES_CONFIG"),
			Destination: &x.path,
		},
	}
}

// Configure loads the seed file. It returns nil when no file is configured.
func (x *SeedFile) Configure() (*Seed, error) {
	if x.path == "" {
		return nil, nil
	}
	return LoadSeed(x.path)
}
