package types

import "fmt"

// ActionType is the tag of a proposed mutating action
type ActionType string

const (
	ActionTypeCreateStatusReport    ActionType = "createStatusReport"
	ActionTypeAddStatusReportUpdate ActionType = "addStatusReportUpdate"
	ActionTypeUpdateStatusReport    ActionType = "updateStatusReport"
	ActionTypeResolveStatusReport   ActionType = "resolveStatusReport"
)

// IsValid checks if the action type is one of the four known tags
func (t ActionType) IsValid() bool {
	switch t {
	case ActionTypeCreateStatusReport,
		ActionTypeAddStatusReportUpdate,
		ActionTypeUpdateStatusReport,
		ActionTypeResolveStatusReport:
		return true
	default:
		return false
	}
}

func (t ActionType) String() string {
	return string(t)
}

// Notifiable reports whether the action publishes to status page subscribers
// and therefore offers an "Approve & Notify" choice.
func (t ActionType) Notifiable() bool {
	return t != ActionTypeUpdateStatusReport
}

// ParseActionType parses a string into an ActionType
func ParseActionType(s string) (ActionType, error) {
	t := ActionType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid action type: %s", s)
	}
	return t, nil
}
