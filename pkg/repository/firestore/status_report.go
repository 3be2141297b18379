package firestore

import (
	"context"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	statusReportsCollection = "status_reports"
	reportUpdatesCollection = "updates"
	countersCollection      = "counters"

	statusReportCounterDoc = "status_report"
	reportUpdateCounterDoc = "status_report_update"
)

type statusReportDoc struct {
	ID               int64     `firestore:"id"`
	PageID           int64     `firestore:"page_id"`
	Title            string    `firestore:"title"`
	Status           string    `firestore:"status"`
	PageComponentIDs []string  `firestore:"page_component_ids"`
	CreatedAt        time.Time `firestore:"created_at"`
	UpdatedAt        time.Time `firestore:"updated_at"`
}

type reportUpdateDoc struct {
	ID      int64     `firestore:"id"`
	Status  string    `firestore:"status"`
	Message string    `firestore:"message"`
	Date    time.Time `firestore:"date"`
}

type statusReportRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.StatusReportRepository = &statusReportRepository{}

func newStatusReportRepository(client *firestore.Client) *statusReportRepository {
	return &statusReportRepository{client: client}
}

func (r *statusReportRepository) collection(workspaceID int64) *firestore.CollectionRef {
	return workspaceDocRef(r.client, r.collectionPrefix, workspaceID).Collection(statusReportsCollection)
}

func (r *statusReportRepository) reportRef(workspaceID, reportID int64) *firestore.DocumentRef {
	return r.collection(workspaceID).Doc(strconv.FormatInt(reportID, 10))
}

func (r *statusReportRepository) counterRef(name string) *firestore.DocumentRef {
	return r.client.Collection(prefixed(r.collectionPrefix, countersCollection)).Doc(name)
}

func fromStatusReportDoc(workspaceID int64, d *statusReportDoc) *model.StatusReport {
	return &model.StatusReport{
		ID:               d.ID,
		WorkspaceID:      workspaceID,
		PageID:           d.PageID,
		Title:            d.Title,
		Status:           types.ReportStatus(d.Status),
		PageComponentIDs: d.PageComponentIDs,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// readCounter returns the next value of a counter. The caller must write it
// back with tx.Set after all transactional reads are done.
func readCounter(tx *firestore.Transaction, ref *firestore.DocumentRef) (int64, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 1, nil
		}
		return 0, goerr.Wrap(err, "failed to get counter", goerr.V("counter", ref.ID))
	}

	current, err := snap.DataAt("value")
	if err != nil {
		return 0, goerr.Wrap(err, "failed to get counter value", goerr.V("counter", ref.ID))
	}
	val, ok := current.(int64)
	if !ok {
		return 0, goerr.New("counter value is not of type int64", goerr.V("value", current))
	}
	return val + 1, nil
}

func (r *statusReportRepository) Get(ctx context.Context, workspaceID, reportID int64) (*model.StatusReport, error) {
	snap, err := r.reportRef(workspaceID, reportID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get status report",
			goerr.V("workspace_id", workspaceID), goerr.V("report_id", reportID))
	}

	var d statusReportDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode status report", goerr.V("report_id", reportID))
	}
	return fromStatusReportDoc(workspaceID, &d), nil
}

func (r *statusReportRepository) List(ctx context.Context, workspaceID int64, statuses ...types.ReportStatus) ([]*model.StatusReport, error) {
	query := r.collection(workspaceID).Query
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, s := range statuses {
			values[i] = s.String()
		}
		query = query.Where("status", "in", values)
	}
	iter := query.OrderBy("created_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var reports []*model.StatusReport
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate status reports", goerr.V("workspace_id", workspaceID))
		}

		var d statusReportDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode status report", goerr.V("doc_id", snap.Ref.ID))
		}
		reports = append(reports, fromStatusReportDoc(workspaceID, &d))
	}
	return reports, nil
}

func (r *statusReportRepository) ListUpdates(ctx context.Context, workspaceID, reportID int64) ([]*model.StatusReportUpdate, error) {
	iter := r.reportRef(workspaceID, reportID).Collection(reportUpdatesCollection).
		OrderBy("id", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var updates []*model.StatusReportUpdate
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate report updates", goerr.V("report_id", reportID))
		}

		var d reportUpdateDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode report update", goerr.V("doc_id", snap.Ref.ID))
		}
		updates = append(updates, &model.StatusReportUpdate{
			ID:             d.ID,
			StatusReportID: reportID,
			Status:         types.ReportStatus(d.Status),
			Message:        d.Message,
			Date:           d.Date,
		})
	}
	return updates, nil
}

func (r *statusReportRepository) Create(ctx context.Context, report *model.StatusReport, first *model.StatusReportUpdate) (*model.StatusReport, error) {
	if report == nil || first == nil {
		return nil, goerr.New("report and first update are required")
	}

	reportCounter := r.counterRef(statusReportCounterDoc)
	updateCounter := r.counterRef(reportUpdateCounterDoc)

	var created *model.StatusReport
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		reportID, err := readCounter(tx, reportCounter)
		if err != nil {
			return err
		}
		updateID, err := readCounter(tx, updateCounter)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		d := &statusReportDoc{
			ID:               reportID,
			PageID:           report.PageID,
			Title:            report.Title,
			Status:           first.Status.String(),
			PageComponentIDs: report.PageComponentIDs,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		date := first.Date
		if date.IsZero() {
			date = now
		}

		ref := r.reportRef(report.WorkspaceID, reportID)
		if err := tx.Set(reportCounter, map[string]any{"value": reportID}); err != nil {
			return err
		}
		if err := tx.Set(updateCounter, map[string]any{"value": updateID}); err != nil {
			return err
		}
		if err := tx.Set(ref, d); err != nil {
			return err
		}
		if err := tx.Set(ref.Collection(reportUpdatesCollection).Doc(strconv.FormatInt(updateID, 10)), &reportUpdateDoc{
			ID:      updateID,
			Status:  first.Status.String(),
			Message: first.Message,
			Date:    date,
		}); err != nil {
			return err
		}

		created = fromStatusReportDoc(report.WorkspaceID, d)
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create status report", goerr.V("workspace_id", report.WorkspaceID))
	}
	return created, nil
}

func (r *statusReportRepository) AddUpdate(ctx context.Context, workspaceID int64, update *model.StatusReportUpdate) (*model.StatusReport, error) {
	if update == nil {
		return nil, goerr.New("update is nil")
	}

	ref := r.reportRef(workspaceID, update.StatusReportID)
	updateCounter := r.counterRef(reportUpdateCounterDoc)

	var updated *model.StatusReport
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "status report not found",
					goerr.V("workspace_id", workspaceID), goerr.V("report_id", update.StatusReportID))
			}
			return err
		}
		var d statusReportDoc
		if err := snap.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to decode status report")
		}

		updateID, err := readCounter(tx, updateCounter)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		date := update.Date
		if date.IsZero() {
			date = now
		}
		d.Status = update.Status.String()
		d.UpdatedAt = now

		if err := tx.Set(updateCounter, map[string]any{"value": updateID}); err != nil {
			return err
		}
		if err := tx.Set(ref.Collection(reportUpdatesCollection).Doc(strconv.FormatInt(updateID, 10)), &reportUpdateDoc{
			ID:      updateID,
			Status:  update.Status.String(),
			Message: update.Message,
			Date:    date,
		}); err != nil {
			return err
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: d.Status},
			{Path: "updated_at", Value: now},
		}); err != nil {
			return err
		}

		updated = fromStatusReportDoc(workspaceID, &d)
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to add status report update",
			goerr.V("workspace_id", workspaceID), goerr.V("report_id", update.StatusReportID))
	}
	return updated, nil
}

func (r *statusReportRepository) UpdateMetadata(ctx context.Context, workspaceID, reportID int64, patch model.StatusReportMetadata) (*model.StatusReport, error) {
	ref := r.reportRef(workspaceID, reportID)

	var updated *model.StatusReport
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "status report not found",
					goerr.V("workspace_id", workspaceID), goerr.V("report_id", reportID))
			}
			return err
		}
		var d statusReportDoc
		if err := snap.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to decode status report")
		}

		d.UpdatedAt = time.Now().UTC()
		updates := []firestore.Update{{Path: "updated_at", Value: d.UpdatedAt}}
		if patch.Title != nil {
			d.Title = *patch.Title
			updates = append(updates, firestore.Update{Path: "title", Value: d.Title})
		}
		if patch.ReplaceComponents {
			d.PageComponentIDs = patch.PageComponentIDs
			if d.PageComponentIDs == nil {
				d.PageComponentIDs = []string{}
			}
			updates = append(updates, firestore.Update{Path: "page_component_ids", Value: d.PageComponentIDs})
		}

		if err := tx.Update(ref, updates); err != nil {
			return err
		}
		updated = fromStatusReportDoc(workspaceID, &d)
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update status report metadata",
			goerr.V("workspace_id", workspaceID), goerr.V("report_id", reportID))
	}
	return updated, nil
}
