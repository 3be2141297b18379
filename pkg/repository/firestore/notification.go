package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"google.golang.org/api/iterator"
)

const notificationsCollection = "notifications"

type notificationDoc struct {
	ID             string    `firestore:"id"`
	PageID         int64     `firestore:"page_id"`
	StatusReportID int64     `firestore:"status_report_id"`
	ReportTitle    string    `firestore:"report_title"`
	Status         string    `firestore:"status"`
	Message        string    `firestore:"message"`
	Date           time.Time `firestore:"date"`
	CreatedAt      time.Time `firestore:"created_at"`
}

type notificationRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.NotificationRepository = &notificationRepository{}

func newNotificationRepository(client *firestore.Client) *notificationRepository {
	return &notificationRepository{client: client}
}

func (r *notificationRepository) collection(workspaceID int64) *firestore.CollectionRef {
	return workspaceDocRef(r.client, r.collectionPrefix, workspaceID).Collection(notificationsCollection)
}

func (r *notificationRepository) Enqueue(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return goerr.New("notification is nil")
	}

	d := &notificationDoc{
		ID:             n.ID,
		PageID:         n.PageID,
		StatusReportID: n.StatusReportID,
		ReportTitle:    n.ReportTitle,
		Status:         n.Status.String(),
		Message:        n.Message,
		Date:           n.Date,
		CreatedAt:      n.CreatedAt,
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection(n.WorkspaceID).Doc(d.ID).Set(ctx, d); err != nil {
		return goerr.Wrap(err, "failed to enqueue notification",
			goerr.V("workspace_id", n.WorkspaceID), goerr.V("report_id", n.StatusReportID))
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, workspaceID int64) ([]*model.Notification, error) {
	iter := r.collection(workspaceID).OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var list []*model.Notification
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate notifications", goerr.V("workspace_id", workspaceID))
		}

		var d notificationDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode notification", goerr.V("doc_id", snap.Ref.ID))
		}
		list = append(list, &model.Notification{
			ID:             d.ID,
			WorkspaceID:    workspaceID,
			PageID:         d.PageID,
			StatusReportID: d.StatusReportID,
			ReportTitle:    d.ReportTitle,
			Status:         types.ReportStatus(d.Status),
			Message:        d.Message,
			Date:           d.Date,
			CreatedAt:      d.CreatedAt,
		})
	}
	return list, nil
}
