package usecase

import (
	"fmt"
	"strings"

	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	goslack "github.com/slack-go/slack" //nolint:depguard
)

const (
	confirmationSectionBlockID = "gyges_confirmation_summary"
	confirmationActionBlockID  = "gyges_confirmation_actions"
)

// ConfirmationText is the one-line summary of a proposed action. It is used as
// the notification fallback of the confirmation message.
func ConfirmationText(a model.Action) string {
	switch v := a.(type) {
	case model.CreateStatusReport:
		return "Create Status Report: " + v.Title
	case model.AddStatusReportUpdate:
		return fmt.Sprintf("Add Status Report Update (%s)", v.Status)
	case model.UpdateStatusReport:
		if v.Title != nil {
			return "Update Status Report: " + *v.Title
		}
		return "Update Status Report"
	case model.ResolveStatusReport:
		return "Resolve Status Report"
	}
	panic(fmt.Sprintf("unreachable: unknown action %T", a))
}

// RenderConfirmation builds the interactive confirmation message for a pending
// action: a summary section, a divider and the decision buttons. Every button
// action_id embeds pendingID so a click can be routed back to the record.
func RenderConfirmation(pendingID string, a model.Action) (string, []goslack.Block) {
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, confirmationDetail(a), false, false),
			nil, nil,
			goslack.SectionBlockOptionBlockID(confirmationSectionBlockID),
		),
		goslack.NewDividerBlock(),
		goslack.NewActionBlock(confirmationActionBlockID, confirmationButtons(pendingID, a.Type())...),
	}
	return ConfirmationText(a), blocks
}

func confirmationButtons(pendingID string, actionType types.ActionType) []goslack.BlockElement {
	approve := goslack.NewButtonBlockElement(
		types.ConfirmationActionID(types.ConfirmationIntentApprove, pendingID), pendingID,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Approve", true, false),
	)
	approve.Style = goslack.StylePrimary
	buttons := []goslack.BlockElement{approve}

	if actionType.Notifiable() {
		buttons = append(buttons, goslack.NewButtonBlockElement(
			types.ConfirmationActionID(types.ConfirmationIntentApproveNotify, pendingID), pendingID,
			goslack.NewTextBlockObject(goslack.PlainTextType, "Approve & Notify", true, false),
		))
	}

	cancel := goslack.NewButtonBlockElement(
		types.ConfirmationActionID(types.ConfirmationIntentCancel, pendingID), pendingID,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Cancel", true, false),
	)
	cancel.Style = goslack.StyleDanger
	return append(buttons, cancel)
}

func confirmationDetail(a model.Action) string {
	var lines []string
	field := func(name, value string) {
		lines = append(lines, fmt.Sprintf("*%s:* %s", name, value))
	}

	switch v := a.(type) {
	case model.CreateStatusReport:
		lines = append(lines, "*Create Status Report*")
		field("Title", v.Title)
		field("Status", v.Status.Label())
		field("Message", v.Message)
		field("Page", fmt.Sprintf("#%d", v.PageID))
		if len(v.PageComponentIDs) > 0 {
			field("Components", strings.Join(v.PageComponentIDs, ", "))
		}
	case model.AddStatusReportUpdate:
		lines = append(lines, "*Add Status Report Update*")
		field("Report", fmt.Sprintf("#%d", v.StatusReportID))
		field("Status", v.Status.Label())
		field("Message", v.Message)
	case model.UpdateStatusReport:
		lines = append(lines, "*Update Status Report*")
		field("Report", fmt.Sprintf("#%d", v.StatusReportID))
		if v.Title != nil {
			field("Title", *v.Title)
		}
		switch {
		case v.PageComponentIDs == nil:
		case len(v.PageComponentIDs) == 0:
			field("Components", "_none_")
		default:
			field("Components", strings.Join(v.PageComponentIDs, ", "))
		}
	case model.ResolveStatusReport:
		lines = append(lines, "*Resolve Status Report*")
		field("Report", fmt.Sprintf("#%d", v.StatusReportID))
		field("Status", types.ReportStatusResolved.Label())
		field("Message", v.Message)
	}
	return strings.Join(lines, "\n")
}
