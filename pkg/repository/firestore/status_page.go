package firestore

import (
	"context"
	"slices"
	"strconv"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const statusPagesCollection = "status_pages"

type pageComponentDoc struct {
	ID   string `firestore:"id"`
	Name string `firestore:"name"`
}

type statusPageDoc struct {
	ID           int64              `firestore:"id"`
	Title        string             `firestore:"title"`
	Slug         string             `firestore:"slug"`
	CustomDomain string             `firestore:"custom_domain"`
	Components   []pageComponentDoc `firestore:"components"`
}

type statusPageRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.StatusPageRepository = &statusPageRepository{}

func newStatusPageRepository(client *firestore.Client) *statusPageRepository {
	return &statusPageRepository{client: client}
}

func (r *statusPageRepository) collection(workspaceID int64) *firestore.CollectionRef {
	return workspaceDocRef(r.client, r.collectionPrefix, workspaceID).Collection(statusPagesCollection)
}

func fromStatusPageDoc(workspaceID int64, d *statusPageDoc) *model.StatusPage {
	page := &model.StatusPage{
		ID:           d.ID,
		WorkspaceID:  workspaceID,
		Title:        d.Title,
		Slug:         d.Slug,
		CustomDomain: d.CustomDomain,
	}
	for _, c := range d.Components {
		page.Components = append(page.Components, model.PageComponent{
			ID:          c.ID,
			WorkspaceID: workspaceID,
			PageID:      d.ID,
			Name:        c.Name,
		})
	}
	return page
}

func (r *statusPageRepository) Get(ctx context.Context, workspaceID, pageID int64) (*model.StatusPage, error) {
	snap, err := r.collection(workspaceID).Doc(strconv.FormatInt(pageID, 10)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get status page",
			goerr.V("workspace_id", workspaceID), goerr.V("page_id", pageID))
	}

	var d statusPageDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode status page", goerr.V("page_id", pageID))
	}
	return fromStatusPageDoc(workspaceID, &d), nil
}

func (r *statusPageRepository) List(ctx context.Context, workspaceID int64) ([]*model.StatusPage, error) {
	iter := r.collection(workspaceID).OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var pages []*model.StatusPage
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate status pages", goerr.V("workspace_id", workspaceID))
		}

		var d statusPageDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode status page", goerr.V("doc_id", snap.Ref.ID))
		}
		pages = append(pages, fromStatusPageDoc(workspaceID, &d))
	}
	return pages, nil
}

// GetComponents scans the workspace's pages; a workspace has a handful of
// pages, each embedding its component list.
func (r *statusPageRepository) GetComponents(ctx context.Context, workspaceID int64, componentIDs []string) ([]*model.PageComponent, error) {
	if len(componentIDs) == 0 {
		return nil, nil
	}

	pages, err := r.List(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	var found []*model.PageComponent
	for _, id := range componentIDs {
		for _, page := range pages {
			idx := slices.IndexFunc(page.Components, func(c model.PageComponent) bool {
				return c.ID == id
			})
			if idx >= 0 {
				c := page.Components[idx]
				found = append(found, &c)
				break
			}
		}
	}
	return found, nil
}

func (r *statusPageRepository) Put(ctx context.Context, page *model.StatusPage) error {
	if page == nil {
		return goerr.New("status page is nil")
	}
	if page.ID <= 0 || page.WorkspaceID <= 0 {
		return goerr.New("status page ID and workspace ID are required",
			goerr.V("id", page.ID), goerr.V("workspace_id", page.WorkspaceID))
	}

	d := &statusPageDoc{
		ID:           page.ID,
		Title:        page.Title,
		Slug:         page.Slug,
		CustomDomain: page.CustomDomain,
	}
	for _, c := range page.Components {
		d.Components = append(d.Components, pageComponentDoc{ID: c.ID, Name: c.Name})
	}

	if _, err := r.collection(page.WorkspaceID).Doc(strconv.FormatInt(page.ID, 10)).Set(ctx, d); err != nil {
		return goerr.Wrap(err, "failed to put status page", goerr.V("page_id", page.ID))
	}
	return nil
}
