// Package notify queues subscriber notifications for status report changes.
// Delivery to subscribers happens outside this service; it only writes the
// outbox when the workspace plan allows it.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

// Notifier accepts a notification for a report change
type Notifier interface {
	// Notify reports whether the notification was queued
	Notify(ctx context.Context, limits model.Limits, n *model.Notification) (bool, error)
}

type Service struct {
	outbox interfaces.NotificationRepository
	now    func() time.Time
}

var _ Notifier = &Service{}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(outbox interfaces.NotificationRepository, opts ...Option) *Service {
	s := &Service{
		outbox: outbox,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify enqueues n when limits permits status subscribers. limits is the
// snapshot taken when the action was proposed.
func (s *Service) Notify(ctx context.Context, limits model.Limits, n *model.Notification) (bool, error) {
	if n == nil {
		return false, goerr.New("notification is nil")
	}
	if !limits.StatusSubscribers {
		logging.From(ctx).Info("status subscribers are not enabled for workspace, skip notification",
			"workspace_id", n.WorkspaceID,
			"status_report_id", n.StatusReportID,
		)
		return false, nil
	}

	entry := *n
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if entry.Date.IsZero() {
		entry.Date = entry.CreatedAt
	}

	if err := s.outbox.Enqueue(ctx, &entry); err != nil {
		return false, goerr.Wrap(err, "failed to enqueue notification",
			goerr.V("workspace_id", entry.WorkspaceID),
			goerr.V("status_report_id", entry.StatusReportID),
		)
	}
	return true, nil
}
