// Package status provides the tools the assistant uses to inspect and propose
// changes to status reports. Read tools answer directly; mutating tools never
// touch the repository and only return a proposal for human confirmation.
package status

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/gyges/pkg/agent/tool"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// New builds the six status tools bound to one workspace
func New(repo interfaces.Repository, workspaceID int64) []tool.Invoker {
	return []tool.Invoker{
		&listStatusPagesTool{repo: repo, workspaceID: workspaceID},
		&listStatusReportsTool{repo: repo, workspaceID: workspaceID},
		&createStatusReportTool{},
		&addStatusReportUpdateTool{},
		&updateStatusReportTool{},
		&resolveStatusReportTool{},
	}
}

// Tools converts invokers to the slice type gollem sessions accept
func Tools(invokers []tool.Invoker) []gollem.Tool {
	out := make([]gollem.Tool, len(invokers))
	for i, inv := range invokers {
		out[i] = inv
	}
	return out
}

func run(ctx context.Context, inv tool.Invoker, args map[string]any) (map[string]any, error) {
	r, err := inv.Invoke(ctx, args)
	if err != nil {
		return nil, err
	}
	return r.Data(), nil
}

func propose(a model.Action) (tool.Result, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return tool.NeedsConfirmation{Action: a}, nil
}

func statusParam(desc string) *gollem.Parameter {
	return &gollem.Parameter{
		Type:        gollem.TypeString,
		Description: desc,
		Enum:        types.ReportStatusStrings(),
		Required:    true,
	}
}

func componentIDsParam(desc string) *gollem.Parameter {
	return &gollem.Parameter{
		Type:        gollem.TypeArray,
		Description: desc,
		Items:       &gollem.Parameter{Type: gollem.TypeString},
	}
}

// listStatusPagesTool lists pages and their components
type listStatusPagesTool struct {
	repo        interfaces.Repository
	workspaceID int64
}

func (t *listStatusPagesTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "listStatusPages",
		Description: "List all status pages of the workspace with their page components. Use the ids when creating or updating a status report.",
		Parameters:  map[string]*gollem.Parameter{},
	}
}

func (t *listStatusPagesTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return run(ctx, t, args)
}

func (t *listStatusPagesTool) Invoke(ctx context.Context, _ map[string]any) (tool.Result, error) {
	tool.Update(ctx, "Looking up status pages...")
	pages, err := t.repo.StatusPage().List(ctx, t.workspaceID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list status pages", goerr.V("workspaceID", t.workspaceID))
	}

	items := make([]map[string]any, len(pages))
	for i, p := range pages {
		components := make([]map[string]any, len(p.Components))
		for j, c := range p.Components {
			components[j] = map[string]any{"id": c.ID, "name": c.Name}
		}
		items[i] = map[string]any{
			"id":         p.ID,
			"title":      p.Title,
			"slug":       p.Slug,
			"components": components,
		}
	}
	return tool.Direct{Payload: map[string]any{"statusPages": items}}, nil
}

// listStatusReportsTool lists reports, active ones unless told otherwise
type listStatusReportsTool struct {
	repo        interfaces.Repository
	workspaceID int64
}

func (t *listStatusReportsTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "listStatusReports",
		Description: "List status reports of the workspace, newest first. By default only unresolved reports are returned.",
		Parameters: map[string]*gollem.Parameter{
			"statuses": {
				Type:        gollem.TypeArray,
				Description: "Only return reports in these statuses",
				Items:       &gollem.Parameter{Type: gollem.TypeString, Enum: types.ReportStatusStrings()},
			},
			"includeResolved": {
				Type:        gollem.TypeBoolean,
				Description: "Also return resolved reports when no statuses are given",
			},
		},
	}
}

func (t *listStatusReportsTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return run(ctx, t, args)
}

func (t *listStatusReportsTool) Invoke(ctx context.Context, args map[string]any) (tool.Result, error) {
	raw, err := extractStringSlice(args, "statuses")
	if err != nil {
		return nil, err
	}

	var statuses []types.ReportStatus
	for _, s := range raw {
		st, err := types.ParseReportStatus(s)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	if len(statuses) == 0 && !extractBool(args, "includeResolved") {
		statuses = []types.ReportStatus{
			types.ReportStatusInvestigating,
			types.ReportStatusIdentified,
			types.ReportStatusMonitoring,
		}
	}

	tool.Update(ctx, "Looking up status reports...")
	reports, err := t.repo.StatusReport().List(ctx, t.workspaceID, statuses...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list status reports", goerr.V("workspaceID", t.workspaceID))
	}

	items := make([]map[string]any, len(reports))
	for i, r := range reports {
		items[i] = map[string]any{
			"id":               r.ID,
			"title":            r.Title,
			"status":           r.Status.String(),
			"pageId":           r.PageID,
			"pageComponentIds": r.PageComponentIDs,
			"createdAt":        r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			"updatedAt":        r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return tool.Direct{Payload: map[string]any{"statusReports": items}}, nil
}

type createStatusReportTool struct{}

func (t *createStatusReportTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        types.ActionTypeCreateStatusReport.String(),
		Description: "Propose a new status report on a status page. The report is only created after the user confirms it.",
		Parameters: map[string]*gollem.Parameter{
			"title": {
				Type:        gollem.TypeString,
				Description: "Short public title of the incident",
				Required:    true,
			},
			"status":  statusParam("Initial status of the report"),
			"message": {Type: gollem.TypeString, Description: "First public update message", Required: true},
			"pageId": {
				Type:        gollem.TypeInteger,
				Description: "ID of the status page to publish on",
				Required:    true,
			},
			"pageComponentIds": componentIDsParam("IDs of affected page components"),
		},
	}
}

func (t *createStatusReportTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return run(ctx, t, args)
}

func (t *createStatusReportTool) Invoke(ctx context.Context, args map[string]any) (tool.Result, error) {
	title, err := extractString(args, "title")
	if err != nil {
		return nil, err
	}
	status, err := extractStatus(args, "status")
	if err != nil {
		return nil, err
	}
	message, err := extractString(args, "message")
	if err != nil {
		return nil, err
	}
	pageID, err := extractInt64(args, "pageId")
	if err != nil {
		return nil, err
	}
	components, err := extractStringSlice(args, "pageComponentIds")
	if err != nil {
		return nil, err
	}

	tool.Update(ctx, fmt.Sprintf("Preparing status report %q...", title))
	return propose(model.CreateStatusReport{
		Title:            title,
		Status:           status,
		Message:          message,
		PageID:           pageID,
		PageComponentIDs: components,
	})
}

type addStatusReportUpdateTool struct{}

func (t *addStatusReportUpdateTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        types.ActionTypeAddStatusReportUpdate.String(),
		Description: "Propose a new update on an existing status report, moving it to the given status. Applied only after the user confirms it.",
		Parameters: map[string]*gollem.Parameter{
			"statusReportId": {
				Type:        gollem.TypeInteger,
				Description: "ID of the status report",
				Required:    true,
			},
			"status":  statusParam("New status of the report"),
			"message": {Type: gollem.TypeString, Description: "Public update message", Required: true},
		},
	}
}

func (t *addStatusReportUpdateTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return run(ctx, t, args)
}

func (t *addStatusReportUpdateTool) Invoke(ctx context.Context, args map[string]any) (tool.Result, error) {
	reportID, err := extractInt64(args, "statusReportId")
	if err != nil {
		return nil, err
	}
	status, err := extractStatus(args, "status")
	if err != nil {
		return nil, err
	}
	message, err := extractString(args, "message")
	if err != nil {
		return nil, err
	}

	tool.Update(ctx, fmt.Sprintf("Preparing update for status report #%d...", reportID))
	return propose(model.AddStatusReportUpdate{
		StatusReportID: reportID,
		Status:         status,
		Message:        message,
	})
}

type updateStatusReportTool struct{}

func (t *updateStatusReportTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        types.ActionTypeUpdateStatusReport.String(),
		Description: "Propose a change to the title or affected components of a status report. Does not post an update message. Applied only after the user confirms it.",
		Parameters: map[string]*gollem.Parameter{
			"statusReportId": {
				Type:        gollem.TypeInteger,
				Description: "ID of the status report",
				Required:    true,
			},
			"title":            {Type: gollem.TypeString, Description: "New title"},
			"pageComponentIds": componentIDsParam("Replacement list of affected page component IDs"),
		},
	}
}

func (t *updateStatusReportTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return run(ctx, t, args)
}

func (t *updateStatusReportTool) Invoke(ctx context.Context, args map[string]any) (tool.Result, error) {
	reportID, err := extractInt64(args, "statusReportId")
	if err != nil {
		return nil, err
	}
	title, err := extractOptionalString(args, "title")
	if err != nil {
		return nil, err
	}
	components, err := extractStringSlice(args, "pageComponentIds")
	if err != nil {
		return nil, err
	}

	tool.Update(ctx, fmt.Sprintf("Preparing changes to status report #%d...", reportID))
	return propose(model.UpdateStatusReport{
		StatusReportID:   reportID,
		Title:            title,
		PageComponentIDs: components,
	})
}

type resolveStatusReportTool struct{}

func (t *resolveStatusReportTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        types.ActionTypeResolveStatusReport.String(),
		Description: "Propose resolving an active status report with a final public message. Applied only after the user confirms it.",
		Parameters: map[string]*gollem.Parameter{
			"statusReportId": {
				Type:        gollem.TypeInteger,
				Description: "ID of the status report to resolve",
				Required:    true,
			},
			"message": {
				Type:        gollem.TypeString,
				Description: "Resolution message explaining what was fixed",
				Required:    true,
			},
		},
	}
}

func (t *resolveStatusReportTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return run(ctx, t, args)
}

func (t *resolveStatusReportTool) Invoke(ctx context.Context, args map[string]any) (tool.Result, error) {
	reportID, err := extractInt64(args, "statusReportId")
	if err != nil {
		return nil, err
	}
	message, err := extractString(args, "message")
	if err != nil {
		return nil, err
	}

	tool.Update(ctx, fmt.Sprintf("Preparing resolution of status report #%d...", reportID))
	return propose(model.ResolveStatusReport{
		StatusReportID: reportID,
		Message:        message,
	})
}
