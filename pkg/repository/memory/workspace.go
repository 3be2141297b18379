package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
)

type workspaceRepository struct {
	mu         sync.RWMutex
	workspaces map[int64]*model.Workspace
}

var _ interfaces.WorkspaceRepository = &workspaceRepository{}

func newWorkspaceRepository() *workspaceRepository {
	return &workspaceRepository{
		workspaces: make(map[int64]*model.Workspace),
	}
}

func (r *workspaceRepository) Get(ctx context.Context, id int64) (*model.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[id]
	if !ok {
		return nil, nil
	}
	copied := *ws
	return &copied, nil
}

func (r *workspaceRepository) Put(ctx context.Context, ws *model.Workspace) error {
	if ws == nil {
		return goerr.New("workspace is nil")
	}
	if ws.ID <= 0 {
		return goerr.New("workspace ID is required", goerr.V("id", ws.ID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *ws
	r.workspaces[ws.ID] = &copied
	return nil
}
