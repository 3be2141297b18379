package types

import "strings"

// ConfirmationIntent is what a user asked for by clicking a confirmation button
type ConfirmationIntent string

const (
	ConfirmationIntentApprove       ConfirmationIntent = "approve"
	ConfirmationIntentApproveNotify ConfirmationIntent = "approve_notify"
	ConfirmationIntentCancel        ConfirmationIntent = "cancel"
)

// confirmationIntents is ordered longest prefix first; "approve_notify_"
// would otherwise be misread as "approve_" with id "notify_...".
var confirmationIntents = []ConfirmationIntent{
	ConfirmationIntentApproveNotify,
	ConfirmationIntentApprove,
	ConfirmationIntentCancel,
}

func (i ConfirmationIntent) String() string {
	return string(i)
}

// Notify reports whether approving with this intent notifies subscribers
func (i ConfirmationIntent) Notify() bool {
	return i == ConfirmationIntentApproveNotify
}

// ConfirmationActionID builds the Block Kit action_id for a button:
// "{intent}_{pendingActionID}".
func ConfirmationActionID(intent ConfirmationIntent, pendingActionID string) string {
	return string(intent) + "_" + pendingActionID
}

// ParseConfirmationActionID recovers the intent and pending action id from an
// action_id. ok is false for unknown prefixes and for an empty id.
func ParseConfirmationActionID(actionID string) (intent ConfirmationIntent, pendingActionID string, ok bool) {
	for _, candidate := range confirmationIntents {
		prefix := string(candidate) + "_"
		if rest, found := strings.CutPrefix(actionID, prefix); found {
			if rest == "" {
				return "", "", false
			}
			return candidate, rest, true
		}
	}
	return "", "", false
}

// InteractionOutcome is the terminal state of a button click
type InteractionOutcome string

const (
	InteractionIgnored   InteractionOutcome = "ignored"
	InteractionExpired   InteractionOutcome = "expired"
	InteractionRejected  InteractionOutcome = "rejected"
	InteractionRaced     InteractionOutcome = "raced"
	InteractionCancelled InteractionOutcome = "cancelled"
	InteractionExecuted  InteractionOutcome = "executed"
	InteractionFailed    InteractionOutcome = "failed"
)

func (o InteractionOutcome) String() string {
	return string(o)
}
