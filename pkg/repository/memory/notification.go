package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
)

type notificationRepository struct {
	mu            sync.RWMutex
	notifications map[int64][]*model.Notification
}

var _ interfaces.NotificationRepository = &notificationRepository{}

func newNotificationRepository() *notificationRepository {
	return &notificationRepository{
		notifications: make(map[int64][]*model.Notification),
	}
}

func (r *notificationRepository) Enqueue(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return goerr.New("notification is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *n
	if copied.ID == "" {
		copied.ID = uuid.NewString()
	}
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	r.notifications[n.WorkspaceID] = append(r.notifications[n.WorkspaceID], &copied)
	return nil
}

func (r *notificationRepository) List(ctx context.Context, workspaceID int64) ([]*model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*model.Notification, 0, len(r.notifications[workspaceID]))
	for _, n := range r.notifications[workspaceID] {
		copied := *n
		list = append(list, &copied)
	}
	return list, nil
}
