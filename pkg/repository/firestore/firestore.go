package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
)

// ErrNotFound is returned by write operations that target a missing document
var ErrNotFound = goerr.New("not found")

type Firestore struct {
	client       *firestore.Client
	workspace    *workspaceRepository
	integration  *integrationRepository
	statusPage   *statusPageRepository
	statusReport *statusReportRepository
	notification *notificationRepository
	kv           *KV
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix isolates every collection behind prefix. Tests use it
// to share one database.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.workspace.collectionPrefix = prefix
		f.integration.collectionPrefix = prefix
		f.statusPage.collectionPrefix = prefix
		f.statusReport.collectionPrefix = prefix
		f.notification.collectionPrefix = prefix
		f.kv.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:       client,
		workspace:    newWorkspaceRepository(client),
		integration:  newIntegrationRepository(client),
		statusPage:   newStatusPageRepository(client),
		statusReport: newStatusReportRepository(client),
		notification: newNotificationRepository(client),
		kv:           newKV(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Workspace() interfaces.WorkspaceRepository {
	return f.workspace
}

func (f *Firestore) Integration() interfaces.IntegrationRepository {
	return f.integration
}

func (f *Firestore) StatusPage() interfaces.StatusPageRepository {
	return f.statusPage
}

func (f *Firestore) StatusReport() interfaces.StatusReportRepository {
	return f.statusReport
}

func (f *Firestore) Notification() interfaces.NotificationRepository {
	return f.notification
}

func (f *Firestore) KV() interfaces.KeyValueStore {
	return f.kv
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func prefixed(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}
