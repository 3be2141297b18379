package status_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gyges/pkg/agent/tool"
	"github.com/secmon-lab/gyges/pkg/agent/tool/status"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/repository/memory"
)

const testWorkspaceID = int64(7)

// newCtxWithUpdateCapture returns a context that captures all update messages
func newCtxWithUpdateCapture() (context.Context, *[]string) {
	var messages []string
	ctx := tool.WithUpdate(context.Background(), func(_ context.Context, msg string) {
		messages = append(messages, msg)
	})
	return ctx, &messages
}

func findTool(t *testing.T, invokers []tool.Invoker, name string) tool.Invoker {
	t.Helper()
	for _, inv := range invokers {
		if inv.Spec().Name == name {
			return inv
		}
	}
	t.Fatalf("tool %s not found", name)
	return nil
}

func setupRepo(t *testing.T) *memory.Memory {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	gt.NoError(t, repo.StatusPage().Put(ctx, &model.StatusPage{
		ID:          1,
		WorkspaceID: testWorkspaceID,
		Title:       "Acme Status",
		Slug:        "acme",
		Components: []model.PageComponent{
			{ID: "comp-1", Name: "API"},
			{ID: "comp-2", Name: "Dashboard"},
		},
	})).Required()

	now := time.Now()
	for _, st := range []types.ReportStatus{types.ReportStatusInvestigating, types.ReportStatusResolved} {
		_, err := repo.StatusReport().Create(ctx,
			&model.StatusReport{WorkspaceID: testWorkspaceID, PageID: 1, Title: "Report " + st.String()},
			&model.StatusReportUpdate{Status: st, Message: "m", Date: now},
		)
		gt.NoError(t, err).Required()
	}
	return repo
}

func TestNew_ToolNames(t *testing.T) {
	invokers := status.New(memory.New(), testWorkspaceID)
	names := make([]string, len(invokers))
	for i, inv := range invokers {
		names[i] = inv.Spec().Name
	}
	gt.Array(t, names).Equal([]string{
		"listStatusPages",
		"listStatusReports",
		"createStatusReport",
		"addStatusReportUpdate",
		"updateStatusReport",
		"resolveStatusReport",
	})
	gt.Array(t, status.Tools(invokers)).Length(6)
}

func TestListStatusPages(t *testing.T) {
	repo := setupRepo(t)
	ctx, updates := newCtxWithUpdateCapture()
	inv := findTool(t, status.New(repo, testWorkspaceID), "listStatusPages")

	result, err := inv.Invoke(ctx, map[string]any{})
	gt.NoError(t, err).Required()

	direct, ok := result.(tool.Direct)
	gt.Bool(t, ok).True()
	pages := direct.Payload["statusPages"].([]map[string]any)
	gt.Array(t, pages).Length(1)
	gt.Value(t, pages[0]["id"]).Equal(any(int64(1)))
	gt.Array(t, pages[0]["components"].([]map[string]any)).Length(2)
	gt.Array(t, *updates).Length(1)

	t.Run("other workspace sees nothing", func(t *testing.T) {
		inv := findTool(t, status.New(repo, 99), "listStatusPages")
		result, err := inv.Invoke(context.Background(), map[string]any{})
		gt.NoError(t, err).Required()
		gt.Array(t, result.(tool.Direct).Payload["statusPages"].([]map[string]any)).Length(0)
	})
}

func TestListStatusReports(t *testing.T) {
	repo := setupRepo(t)
	inv := findTool(t, status.New(repo, testWorkspaceID), "listStatusReports")

	t.Run("active only by default", func(t *testing.T) {
		result, err := inv.Invoke(context.Background(), map[string]any{})
		gt.NoError(t, err).Required()
		reports := result.(tool.Direct).Payload["statusReports"].([]map[string]any)
		gt.Array(t, reports).Length(1)
		gt.Value(t, reports[0]["status"]).Equal(any("investigating"))
	})

	t.Run("include resolved", func(t *testing.T) {
		result, err := inv.Invoke(context.Background(), map[string]any{"includeResolved": true})
		gt.NoError(t, err).Required()
		gt.Array(t, result.(tool.Direct).Payload["statusReports"].([]map[string]any)).Length(2)
	})

	t.Run("explicit statuses", func(t *testing.T) {
		result, err := inv.Invoke(context.Background(), map[string]any{"statuses": []any{"resolved"}})
		gt.NoError(t, err).Required()
		reports := result.(tool.Direct).Payload["statusReports"].([]map[string]any)
		gt.Array(t, reports).Length(1)
		gt.Value(t, reports[0]["status"]).Equal(any("resolved"))
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := inv.Invoke(context.Background(), map[string]any{"statuses": []any{"broken"}})
		gt.Error(t, err)
	})
}

func TestCreateStatusReport(t *testing.T) {
	repo := setupRepo(t)
	inv := findTool(t, status.New(repo, testWorkspaceID), "createStatusReport")

	t.Run("returns proposal without writing", func(t *testing.T) {
		result, err := inv.Invoke(context.Background(), map[string]any{
			"title":            "API Outage",
			"status":           "investigating",
			"message":          "We are investigating the issue",
			"pageId":           float64(1),
			"pageComponentIds": []any{"comp-1", "comp-2"},
		})
		gt.NoError(t, err).Required()

		nc, ok := result.(tool.NeedsConfirmation)
		gt.Bool(t, ok).True()
		gt.Value(t, nc.Action).Equal(model.Action(model.CreateStatusReport{
			Title:            "API Outage",
			Status:           types.ReportStatusInvestigating,
			Message:          "We are investigating the issue",
			PageID:           1,
			PageComponentIDs: []string{"comp-1", "comp-2"},
		}))

		reports, err := repo.StatusReport().List(context.Background(), testWorkspaceID)
		gt.NoError(t, err).Required()
		gt.Array(t, reports).Length(2)
	})

	t.Run("run returns confirmation payload", func(t *testing.T) {
		data, err := inv.Run(context.Background(), map[string]any{
			"title":   "Outage",
			"status":  "identified",
			"message": "msg",
			"pageId":  1,
		})
		gt.NoError(t, err).Required()
		gt.Value(t, data["needsConfirmation"]).Equal(any(true))
		params := data["params"].(map[string]any)
		gt.Value(t, params["title"]).Equal(any("Outage"))
		gt.Value(t, params["pageId"]).Equal(any(float64(1)))
	})

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing title", map[string]any{"status": "investigating", "message": "m", "pageId": 1}},
		{"invalid status", map[string]any{"title": "t", "status": "down", "message": "m", "pageId": 1}},
		{"missing page", map[string]any{"title": "t", "status": "investigating", "message": "m"}},
		{"fractional page", map[string]any{"title": "t", "status": "investigating", "message": "m", "pageId": 1.5}},
		{"non-string component", map[string]any{"title": "t", "status": "investigating", "message": "m", "pageId": 1, "pageComponentIds": []any{1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := inv.Invoke(context.Background(), tc.args)
			gt.Error(t, err)
		})
	}
}

func TestAddStatusReportUpdate(t *testing.T) {
	inv := findTool(t, status.New(memory.New(), testWorkspaceID), "addStatusReportUpdate")

	result, err := inv.Invoke(context.Background(), map[string]any{
		"statusReportId": 42,
		"status":         "resolved",
		"message":        "Issue has been fixed",
	})
	gt.NoError(t, err).Required()
	gt.Value(t, result.(tool.NeedsConfirmation).Action).Equal(model.Action(model.AddStatusReportUpdate{
		StatusReportID: 42,
		Status:         types.ReportStatusResolved,
		Message:        "Issue has been fixed",
	}))

	_, err = inv.Invoke(context.Background(), map[string]any{"statusReportId": 42, "status": "identified"})
	gt.Error(t, err)
}

func TestUpdateStatusReport(t *testing.T) {
	inv := findTool(t, status.New(memory.New(), testWorkspaceID), "updateStatusReport")

	t.Run("title only keeps components", func(t *testing.T) {
		result, err := inv.Invoke(context.Background(), map[string]any{"statusReportId": 10, "title": "Updated Title"})
		gt.NoError(t, err).Required()
		a := result.(tool.NeedsConfirmation).Action.(model.UpdateStatusReport)
		gt.Value(t, *a.Title).Equal("Updated Title")
		gt.Bool(t, a.PageComponentIDs == nil).True()
	})

	t.Run("components only", func(t *testing.T) {
		result, err := inv.Invoke(context.Background(), map[string]any{"statusReportId": 10, "pageComponentIds": []any{"comp-1"}})
		gt.NoError(t, err).Required()
		a := result.(tool.NeedsConfirmation).Action.(model.UpdateStatusReport)
		gt.Value(t, a.Title).Nil()
		gt.Array(t, a.PageComponentIDs).Equal([]string{"comp-1"})
	})

	t.Run("empty list clears components", func(t *testing.T) {
		result, err := inv.Invoke(context.Background(), map[string]any{"statusReportId": 10, "pageComponentIds": []any{}})
		gt.NoError(t, err).Required()
		a := result.(tool.NeedsConfirmation).Action.(model.UpdateStatusReport)
		gt.Bool(t, a.PageComponentIDs != nil).True()
		gt.Array(t, a.PageComponentIDs).Length(0)
	})

	t.Run("only report id", func(t *testing.T) {
		result, err := inv.Invoke(context.Background(), map[string]any{"statusReportId": 10})
		gt.NoError(t, err).Required()
		gt.Value(t, result.(tool.NeedsConfirmation).Action.(model.UpdateStatusReport).StatusReportID).Equal(int64(10))
	})

	t.Run("empty title rejected", func(t *testing.T) {
		_, err := inv.Invoke(context.Background(), map[string]any{"statusReportId": 10, "title": ""})
		gt.Error(t, err)
	})
}

func TestResolveStatusReport(t *testing.T) {
	ctx, updates := newCtxWithUpdateCapture()
	inv := findTool(t, status.New(memory.New(), testWorkspaceID), "resolveStatusReport")

	result, err := inv.Invoke(ctx, map[string]any{"statusReportId": 5, "message": "Issue has been resolved"})
	gt.NoError(t, err).Required()
	gt.Value(t, result.(tool.NeedsConfirmation).Action).Equal(model.Action(model.ResolveStatusReport{
		StatusReportID: 5,
		Message:        "Issue has been resolved",
	}))
	gt.Array(t, *updates).Length(1)

	_, err = inv.Invoke(ctx, map[string]any{"statusReportId": "5", "message": "m"})
	gt.Error(t, err)
}
