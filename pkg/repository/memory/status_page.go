package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
)

type statusPageRepository struct {
	mu    sync.RWMutex
	pages map[int64]map[int64]*model.StatusPage
}

var _ interfaces.StatusPageRepository = &statusPageRepository{}

func newStatusPageRepository() *statusPageRepository {
	return &statusPageRepository{
		pages: make(map[int64]map[int64]*model.StatusPage),
	}
}

func copyStatusPage(p *model.StatusPage) *model.StatusPage {
	copied := *p
	copied.Components = slices.Clone(p.Components)
	return &copied
}

func (r *statusPageRepository) Get(ctx context.Context, workspaceID, pageID int64) (*model.StatusPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	page, ok := r.pages[workspaceID][pageID]
	if !ok {
		return nil, nil
	}
	return copyStatusPage(page), nil
}

func (r *statusPageRepository) List(ctx context.Context, workspaceID int64) ([]*model.StatusPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pages := make([]*model.StatusPage, 0, len(r.pages[workspaceID]))
	for _, p := range r.pages[workspaceID] {
		pages = append(pages, copyStatusPage(p))
	}
	slices.SortFunc(pages, func(a, b *model.StatusPage) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return pages, nil
}

func (r *statusPageRepository) GetComponents(ctx context.Context, workspaceID int64, componentIDs []string) ([]*model.PageComponent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []*model.PageComponent
	for _, id := range componentIDs {
		for _, page := range r.pages[workspaceID] {
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

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pages[page.WorkspaceID]; !ok {
		r.pages[page.WorkspaceID] = make(map[int64]*model.StatusPage)
	}
	copied := copyStatusPage(page)
	for i := range copied.Components {
		copied.Components[i].WorkspaceID = page.WorkspaceID
		copied.Components[i].PageID = page.ID
	}
	r.pages[page.WorkspaceID][page.ID] = copied
	return nil
}
