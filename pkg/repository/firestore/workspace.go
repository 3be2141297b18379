package firestore

import (
	"context"
	"strconv"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const workspacesCollection = "workspaces"

type workspaceDoc struct {
	ID                   int64  `firestore:"id"`
	Name                 string `firestore:"name"`
	Slug                 string `firestore:"slug"`
	StatusSubscribers    bool   `firestore:"status_subscribers"`
	NotificationChannels int    `firestore:"notification_channels"`
}

type workspaceRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.WorkspaceRepository = &workspaceRepository{}

func newWorkspaceRepository(client *firestore.Client) *workspaceRepository {
	return &workspaceRepository{client: client}
}

// workspaceDocRef is shared by the repositories that nest under a workspace
func workspaceDocRef(client *firestore.Client, prefix string, workspaceID int64) *firestore.DocumentRef {
	return client.Collection(prefixed(prefix, workspacesCollection)).Doc(strconv.FormatInt(workspaceID, 10))
}

func (r *workspaceRepository) Get(ctx context.Context, id int64) (*model.Workspace, error) {
	snap, err := workspaceDocRef(r.client, r.collectionPrefix, id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get workspace", goerr.V("id", id))
	}

	var d workspaceDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode workspace", goerr.V("id", id))
	}

	return &model.Workspace{
		ID:   d.ID,
		Name: d.Name,
		Slug: d.Slug,
		Limits: model.Limits{
			StatusSubscribers:    d.StatusSubscribers,
			NotificationChannels: d.NotificationChannels,
		},
	}, nil
}

func (r *workspaceRepository) Put(ctx context.Context, ws *model.Workspace) error {
	if ws == nil {
		return goerr.New("workspace is nil")
	}
	if ws.ID <= 0 {
		return goerr.New("workspace ID is required", goerr.V("id", ws.ID))
	}

	d := &workspaceDoc{
		ID:                   ws.ID,
		Name:                 ws.Name,
		Slug:                 ws.Slug,
		StatusSubscribers:    ws.Limits.StatusSubscribers,
		NotificationChannels: ws.Limits.NotificationChannels,
	}
	if _, err := workspaceDocRef(r.client, r.collectionPrefix, ws.ID).Set(ctx, d); err != nil {
		return goerr.Wrap(err, "failed to put workspace", goerr.V("id", ws.ID))
	}
	return nil
}
