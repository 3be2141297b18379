package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

type statusReportRepository struct {
	mu           sync.RWMutex
	reports      map[int64]map[int64]*model.StatusReport
	updates      map[int64][]*model.StatusReportUpdate
	nextReportID int64
	nextUpdateID int64
}

var _ interfaces.StatusReportRepository = &statusReportRepository{}

func newStatusReportRepository() *statusReportRepository {
	return &statusReportRepository{
		reports: make(map[int64]map[int64]*model.StatusReport),
		updates: make(map[int64][]*model.StatusReportUpdate),
	}
}

func copyStatusReport(r *model.StatusReport) *model.StatusReport {
	copied := *r
	copied.PageComponentIDs = slices.Clone(r.PageComponentIDs)
	return &copied
}

func (r *statusReportRepository) Get(ctx context.Context, workspaceID, reportID int64) (*model.StatusReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[workspaceID][reportID]
	if !ok {
		return nil, nil
	}
	return copyStatusReport(report), nil
}

func (r *statusReportRepository) List(ctx context.Context, workspaceID int64, statuses ...types.ReportStatus) ([]*model.StatusReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var reports []*model.StatusReport
	for _, report := range r.reports[workspaceID] {
		if len(statuses) > 0 && !slices.Contains(statuses, report.Status) {
			continue
		}
		reports = append(reports, copyStatusReport(report))
	}

	slices.SortFunc(reports, func(a, b *model.StatusReport) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return reports, nil
}

func (r *statusReportRepository) ListUpdates(ctx context.Context, workspaceID, reportID int64) ([]*model.StatusReportUpdate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.reports[workspaceID][reportID]; !ok {
		return nil, nil
	}

	updates := make([]*model.StatusReportUpdate, 0, len(r.updates[reportID]))
	for _, u := range r.updates[reportID] {
		copied := *u
		updates = append(updates, &copied)
	}
	return updates, nil
}

func (r *statusReportRepository) Create(ctx context.Context, report *model.StatusReport, first *model.StatusReportUpdate) (*model.StatusReport, error) {
	if report == nil || first == nil {
		return nil, goerr.New("report and first update are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	r.nextReportID++
	created := copyStatusReport(report)
	created.ID = r.nextReportID
	created.Status = first.Status
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, ok := r.reports[created.WorkspaceID]; !ok {
		r.reports[created.WorkspaceID] = make(map[int64]*model.StatusReport)
	}
	r.reports[created.WorkspaceID][created.ID] = created

	r.nextUpdateID++
	update := *first
	update.ID = r.nextUpdateID
	update.StatusReportID = created.ID
	if update.Date.IsZero() {
		update.Date = now
	}
	r.updates[created.ID] = append(r.updates[created.ID], &update)

	return copyStatusReport(created), nil
}

func (r *statusReportRepository) AddUpdate(ctx context.Context, workspaceID int64, update *model.StatusReportUpdate) (*model.StatusReport, error) {
	if update == nil {
		return nil, goerr.New("update is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[workspaceID][update.StatusReportID]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "status report not found",
			goerr.V("workspace_id", workspaceID), goerr.V("report_id", update.StatusReportID))
	}

	now := time.Now().UTC()
	r.nextUpdateID++
	added := *update
	added.ID = r.nextUpdateID
	if added.Date.IsZero() {
		added.Date = now
	}
	r.updates[report.ID] = append(r.updates[report.ID], &added)

	report.Status = update.Status
	report.UpdatedAt = now
	return copyStatusReport(report), nil
}

func (r *statusReportRepository) UpdateMetadata(ctx context.Context, workspaceID, reportID int64, patch model.StatusReportMetadata) (*model.StatusReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[workspaceID][reportID]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "status report not found",
			goerr.V("workspace_id", workspaceID), goerr.V("report_id", reportID))
	}

	if patch.Title != nil {
		report.Title = *patch.Title
	}
	if patch.ReplaceComponents {
		report.PageComponentIDs = slices.Clone(patch.PageComponentIDs)
	}
	report.UpdatedAt = time.Now().UTC()
	return copyStatusReport(report), nil
}
