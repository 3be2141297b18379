package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/service/notify"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

// ExecutorUseCase applies an approved pending action to the repository and
// returns the text that replaces the confirmation message.
type ExecutorUseCase struct {
	repo         interfaces.Repository
	notifier     notify.Notifier
	statusDomain string
	now          func() time.Time
}

type ExecutorOption func(*ExecutorUseCase)

// WithStatusDomain sets the domain status pages are served under by slug,
// e.g. "status.example.com" for https://{slug}.status.example.com
func WithStatusDomain(domain string) ExecutorOption {
	return func(uc *ExecutorUseCase) {
		uc.statusDomain = domain
	}
}

func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(uc *ExecutorUseCase) {
		uc.now = now
	}
}

func NewExecutorUseCase(repo interfaces.Repository, notifier notify.Notifier, opts ...ExecutorOption) *ExecutorUseCase {
	uc := &ExecutorUseCase{
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Execute runs the action of a consumed pending record. notifySubscribers asks for
// subscribers to be notified; it is honoured only for actions that publish an
// update and only when the plan snapshot in pending allows it.
func (uc *ExecutorUseCase) Execute(ctx context.Context, pending *model.PendingAction, notifySubscribers bool) (string, error) {
	if pending == nil || pending.Action == nil {
		return "", goerr.New("pending action is required")
	}

	switch a := pending.Action.(type) {
	case model.CreateStatusReport:
		return uc.createStatusReport(ctx, pending, a, notifySubscribers)
	case model.AddStatusReportUpdate:
		return uc.addStatusReportUpdate(ctx, pending, a, notifySubscribers)
	case model.UpdateStatusReport:
		return uc.updateStatusReport(ctx, pending, a)
	case model.ResolveStatusReport:
		return uc.resolveStatusReport(ctx, pending, a, notifySubscribers)
	}
	panic(fmt.Sprintf("unreachable: unknown action %T", pending.Action))
}

func (uc *ExecutorUseCase) createStatusReport(ctx context.Context, pending *model.PendingAction, a model.CreateStatusReport, notifySubscribers bool) (string, error) {
	wsID := pending.WorkspaceID

	componentIDs, componentPageID, err := uc.validatePageComponents(ctx, wsID, a.PageComponentIDs)
	if err != nil {
		return "", err
	}
	if componentPageID != 0 && componentPageID != a.PageID {
		return "", goerr.Wrap(ErrPageMismatch,
			fmt.Sprintf("pageId %d does not match the page (%d) that the selected components belong to", a.PageID, componentPageID),
			goerr.V(WorkspaceIDKey, wsID),
		)
	}

	pageID := a.PageID
	if componentPageID != 0 {
		pageID = componentPageID
	}
	page, err := uc.repo.StatusPage().Get(ctx, wsID, pageID)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get status page", goerr.V(WorkspaceIDKey, wsID), goerr.V("page_id", pageID))
	}
	if page == nil {
		return "", goerr.Wrap(ErrStatusPageNotFound, "failed to create status report", goerr.V(WorkspaceIDKey, wsID), goerr.V("page_id", pageID))
	}

	now := uc.now()
	report, err := uc.repo.StatusReport().Create(ctx,
		&model.StatusReport{
			WorkspaceID:      wsID,
			PageID:           pageID,
			Title:            a.Title,
			Status:           a.Status,
			PageComponentIDs: componentIDs,
		},
		&model.StatusReportUpdate{
			Status:  a.Status,
			Message: a.Message,
			Date:    now,
		},
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create status report", goerr.V(WorkspaceIDKey, wsID))
	}

	notified := false
	if notifySubscribers {
		notified = uc.notify(ctx, pending, report, a.Status, a.Message, now)
	}

	var b strings.Builder
	fmt.Fprintf(&b, ":white_check_mark: Status report *%s* created%s.", a.Title, notifiedSuffix(notified))
	writeReportLink(&b, page.ReportURL(uc.statusDomain, report.ID))
	return b.String(), nil
}

func (uc *ExecutorUseCase) addStatusReportUpdate(ctx context.Context, pending *model.PendingAction, a model.AddStatusReportUpdate, notifySubscribers bool) (string, error) {
	report, err := uc.appendUpdate(ctx, pending.WorkspaceID, a.StatusReportID, a.Status, a.Message)
	if err != nil {
		return "", err
	}

	notified := false
	if notifySubscribers {
		notified = uc.notify(ctx, pending, report, a.Status, a.Message, uc.now())
	}

	var b strings.Builder
	fmt.Fprintf(&b, ":white_check_mark: Update added to *%s* (%s)%s.\n>%s", report.Title, a.Status, notifiedSuffix(notified), a.Message)
	writeReportLink(&b, uc.reportURL(ctx, report))
	return b.String(), nil
}

func (uc *ExecutorUseCase) updateStatusReport(ctx context.Context, pending *model.PendingAction, a model.UpdateStatusReport) (string, error) {
	wsID := pending.WorkspaceID
	if _, err := uc.getStatusReport(ctx, wsID, a.StatusReportID); err != nil {
		return "", err
	}

	patch := model.StatusReportMetadata{Title: a.Title}
	if a.PageComponentIDs != nil {
		ids, _, err := uc.validatePageComponents(ctx, wsID, a.PageComponentIDs)
		if err != nil {
			return "", err
		}
		patch.PageComponentIDs = ids
		patch.ReplaceComponents = true
	}

	report, err := uc.repo.StatusReport().UpdateMetadata(ctx, wsID, a.StatusReportID, patch)
	if err != nil {
		return "", goerr.Wrap(err, "failed to update status report",
			goerr.V(WorkspaceIDKey, wsID),
			goerr.V(StatusReportIDKey, a.StatusReportID),
		)
	}

	return fmt.Sprintf(":white_check_mark: Status report *%s* updated.", report.Title), nil
}

func (uc *ExecutorUseCase) resolveStatusReport(ctx context.Context, pending *model.PendingAction, a model.ResolveStatusReport, notifySubscribers bool) (string, error) {
	report, err := uc.appendUpdate(ctx, pending.WorkspaceID, a.StatusReportID, types.ReportStatusResolved, a.Message)
	if err != nil {
		return "", err
	}

	notified := false
	if notifySubscribers {
		notified = uc.notify(ctx, pending, report, types.ReportStatusResolved, a.Message, uc.now())
	}

	var b strings.Builder
	fmt.Fprintf(&b, ":white_check_mark: *%s* resolved%s.\n>%s", report.Title, notifiedSuffix(notified), a.Message)
	writeReportLink(&b, uc.reportURL(ctx, report))
	return b.String(), nil
}

func (uc *ExecutorUseCase) appendUpdate(ctx context.Context, wsID, reportID int64, status types.ReportStatus, message string) (*model.StatusReport, error) {
	if _, err := uc.getStatusReport(ctx, wsID, reportID); err != nil {
		return nil, err
	}

	report, err := uc.repo.StatusReport().AddUpdate(ctx, wsID, &model.StatusReportUpdate{
		StatusReportID: reportID,
		Status:         status,
		Message:        message,
		Date:           uc.now(),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to add status report update",
			goerr.V(WorkspaceIDKey, wsID),
			goerr.V(StatusReportIDKey, reportID),
		)
	}
	return report, nil
}

// getStatusReport scopes the lookup to the workspace so a report of another
// tenant is reported as missing.
func (uc *ExecutorUseCase) getStatusReport(ctx context.Context, wsID, reportID int64) (*model.StatusReport, error) {
	report, err := uc.repo.StatusReport().Get(ctx, wsID, reportID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get status report",
			goerr.V(WorkspaceIDKey, wsID),
			goerr.V(StatusReportIDKey, reportID),
		)
	}
	if report == nil {
		return nil, goerr.With(ErrStatusReportNotFound,
			goerr.V(WorkspaceIDKey, wsID),
			goerr.V(StatusReportIDKey, reportID),
		)
	}
	return report, nil
}

// validatePageComponents checks that every id names a component of the
// workspace and that they all sit on one page. It returns the de-duplicated
// ids and that page, or 0 when ids is empty.
func (uc *ExecutorUseCase) validatePageComponents(ctx context.Context, wsID int64, ids []string) ([]string, int64, error) {
	if len(ids) == 0 {
		return []string{}, 0, nil
	}

	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(unique, id) {
			unique = append(unique, id)
		}
	}

	components, err := uc.repo.StatusPage().GetComponents(ctx, wsID, unique)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to get page components", goerr.V(WorkspaceIDKey, wsID))
	}

	found := make(map[string]int64, len(components))
	for _, c := range components {
		found[c.ID] = c.PageID
	}

	var missing []string
	var pageID int64
	for _, id := range unique {
		p, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if pageID == 0 {
			pageID = p
		} else if pageID != p {
			return nil, 0, goerr.Wrap(ErrInvalidPageComponents, "page components belong to more than one page",
				goerr.V(WorkspaceIDKey, wsID),
				goerr.V("component_ids", unique),
			)
		}
	}
	if len(missing) > 0 {
		return nil, 0, goerr.Wrap(ErrInvalidPageComponents,
			fmt.Sprintf("unknown page components: %s", strings.Join(missing, ", ")),
			goerr.V(WorkspaceIDKey, wsID),
		)
	}

	return unique, pageID, nil
}

// notify queues a subscriber notification. A failure is logged and does not
// undo the change that was already committed.
func (uc *ExecutorUseCase) notify(ctx context.Context, pending *model.PendingAction, report *model.StatusReport, status types.ReportStatus, message string, date time.Time) bool {
	logger := logging.From(ctx)
	if report.PageID == 0 {
		logger.Info("status report has no page, skip notification", StatusReportIDKey, report.ID)
		return false
	}

	queued, err := uc.notifier.Notify(ctx, pending.Limits, &model.Notification{
		WorkspaceID:    pending.WorkspaceID,
		PageID:         report.PageID,
		StatusReportID: report.ID,
		ReportTitle:    report.Title,
		Status:         status,
		Message:        message,
		Date:           date,
	})
	if err != nil {
		logger.Error("failed to notify subscribers",
			"error", err.Error(),
			WorkspaceIDKey, pending.WorkspaceID,
			StatusReportIDKey, report.ID,
		)
		return false
	}
	return queued
}

func (uc *ExecutorUseCase) reportURL(ctx context.Context, report *model.StatusReport) string {
	if report.PageID == 0 {
		return ""
	}
	page, err := uc.repo.StatusPage().Get(ctx, report.WorkspaceID, report.PageID)
	if err != nil {
		logging.From(ctx).Warn("failed to get status page for report link",
			"error", err.Error(),
			StatusReportIDKey, report.ID,
		)
		return ""
	}
	if page == nil {
		return ""
	}
	return page.ReportURL(uc.statusDomain, report.ID)
}

func notifiedSuffix(notified bool) string {
	if notified {
		return " and subscribers notified"
	}
	return ""
}

func writeReportLink(b *strings.Builder, url string) {
	if url != "" {
		fmt.Fprintf(b, "\n<%s|View on status page>", url)
	}
}
