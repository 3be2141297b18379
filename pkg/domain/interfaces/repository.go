package interfaces

import (
	"context"

	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// Repository defines the interface for data persistence
type Repository interface {
	Workspace() WorkspaceRepository
	Integration() IntegrationRepository
	StatusPage() StatusPageRepository
	StatusReport() StatusReportRepository
	Notification() NotificationRepository

	// KV returns the key/value store that lives alongside the repository.
	// Deployments may substitute another KeyValueStore (e.g. Redis).
	KV() KeyValueStore

	Close() error
}

// WorkspaceRepository stores tenants
type WorkspaceRepository interface {
	Get(ctx context.Context, id int64) (*model.Workspace, error)
	Put(ctx context.Context, ws *model.Workspace) error
}

// IntegrationRepository stores Slack installations keyed by team ID
type IntegrationRepository interface {
	GetByTeamID(ctx context.Context, teamID string) (*model.SlackIntegration, error)
	Put(ctx context.Context, integration *model.SlackIntegration) error
	DeleteByTeamID(ctx context.Context, teamID string) error
}

// StatusPageRepository is the read API over status pages
type StatusPageRepository interface {
	Get(ctx context.Context, workspaceID, pageID int64) (*model.StatusPage, error)
	List(ctx context.Context, workspaceID int64) ([]*model.StatusPage, error)
	// GetComponents returns the requested components that belong to the
	// workspace. Unknown or foreign IDs are omitted from the result.
	GetComponents(ctx context.Context, workspaceID int64, componentIDs []string) ([]*model.PageComponent, error)
	Put(ctx context.Context, page *model.StatusPage) error
}

// StatusReportRepository persists reports. Every write method is a single
// transaction.
type StatusReportRepository interface {
	Get(ctx context.Context, workspaceID, reportID int64) (*model.StatusReport, error)
	// List returns reports newest first, filtered to statuses when any are given
	List(ctx context.Context, workspaceID int64, statuses ...types.ReportStatus) ([]*model.StatusReport, error)
	ListUpdates(ctx context.Context, workspaceID, reportID int64) ([]*model.StatusReportUpdate, error)

	// Create inserts the report, its component associations and first update
	Create(ctx context.Context, report *model.StatusReport, first *model.StatusReportUpdate) (*model.StatusReport, error)
	// AddUpdate inserts an update and sets the report status to update.Status
	AddUpdate(ctx context.Context, workspaceID int64, update *model.StatusReportUpdate) (*model.StatusReport, error)
	// UpdateMetadata patches title and/or component associations
	UpdateMetadata(ctx context.Context, workspaceID, reportID int64, patch model.StatusReportMetadata) (*model.StatusReport, error)
}

// NotificationRepository is the subscriber notification outbox
type NotificationRepository interface {
	Enqueue(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, workspaceID int64) ([]*model.Notification, error)
}
