package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/service/audit"
	"github.com/secmon-lab/gyges/pkg/service/confirmation"
	"github.com/secmon-lab/gyges/pkg/service/slack"
	"github.com/secmon-lab/gyges/pkg/utils/errutil"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	goslack "github.com/slack-go/slack" //nolint:depguard
)

const (
	expiredActionText   = ":x: This action has expired. Please try again."
	notInitiatorText    = "Only the person who initiated this action can approve or cancel it."
	cancelledActionText = ":no_entry_sign: Cancelled."
	failedActionPrefix  = ":x: Failed: "
)

// BlockAction is one button click on a confirmation message
type BlockAction struct {
	TeamID    string
	UserID    string
	ChannelID string
	MessageTS string
	ActionID  string
}

// InteractionUseCase decides what a confirmation button click does. A pending
// action is executed at most once no matter how many clicks race for it.
type InteractionUseCase struct {
	store    *confirmation.Store
	resolver *WorkspaceResolver
	slack    slack.Factory
	executor *ExecutorUseCase
	audit    audit.Recorder
}

type InteractionOption func(*InteractionUseCase)

func WithAuditRecorder(r audit.Recorder) InteractionOption {
	return func(uc *InteractionUseCase) {
		uc.audit = r
	}
}

func NewInteractionUseCase(store *confirmation.Store, resolver *WorkspaceResolver, slackFactory slack.Factory, executor *ExecutorUseCase, opts ...InteractionOption) *InteractionUseCase {
	uc := &InteractionUseCase{
		store:    store,
		resolver: resolver,
		slack:    slackFactory,
		executor: executor,
		audit:    audit.Logger{},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// HandleBlockAction routes a click to expiry, rejection, cancellation or
// execution. Chat-visible failures are reported in the message and do not
// surface as an error; the returned error is for infrastructure failures.
func (uc *InteractionUseCase) HandleBlockAction(ctx context.Context, act BlockAction) (types.InteractionOutcome, error) {
	logger := logging.From(ctx).With("action_id", act.ActionID, "user_id", act.UserID)
	ctx = logging.With(ctx, logger)

	intent, pendingID, ok := types.ParseConfirmationActionID(act.ActionID)
	if !ok {
		logger.Debug("ignore unknown block action")
		return types.InteractionIgnored, nil
	}

	pending, err := uc.store.Get(ctx, pendingID)
	if err != nil {
		return types.InteractionIgnored, goerr.Wrap(err, "failed to get pending action", goerr.V(PendingActionIDKey, pendingID))
	}

	token, err := uc.botToken(ctx, pending, act.TeamID)
	if err != nil {
		return types.InteractionIgnored, err
	}
	if token == "" {
		logger.Warn("no bot token for block action, ignore", "team_id", act.TeamID)
		return types.InteractionIgnored, nil
	}

	svc, err := uc.slack(token)
	if err != nil {
		return types.InteractionIgnored, goerr.Wrap(err, "failed to create slack service", goerr.V("team_id", act.TeamID))
	}

	if pending == nil {
		if err := svc.UpdateMessage(ctx, act.ChannelID, act.MessageTS, []goslack.Block{}, expiredActionText); err != nil {
			return types.InteractionExpired, goerr.Wrap(err, "failed to post expiry notice", goerr.V(PendingActionIDKey, pendingID))
		}
		uc.record(ctx, act, pendingID, nil, types.InteractionExpired, false, nil)
		return types.InteractionExpired, nil
	}

	if act.UserID != pending.UserID {
		if err := svc.PostEphemeral(ctx, act.ChannelID, act.UserID, notInitiatorText); err != nil {
			return types.InteractionRejected, goerr.Wrap(err, "failed to post rejection", goerr.V(PendingActionIDKey, pendingID))
		}
		uc.record(ctx, act, pendingID, pending, types.InteractionRejected, false, nil)
		return types.InteractionRejected, nil
	}

	consumed, err := uc.store.Consume(ctx, pendingID)
	if err != nil {
		return types.InteractionIgnored, goerr.Wrap(err, "failed to consume pending action", goerr.V(PendingActionIDKey, pendingID))
	}
	if consumed == nil {
		logger.Info("pending action already consumed by another click", PendingActionIDKey, pendingID)
		return types.InteractionRaced, nil
	}

	if intent == types.ConfirmationIntentCancel {
		if err := svc.UpdateMessage(ctx, act.ChannelID, act.MessageTS, []goslack.Block{}, cancelledActionText); err != nil {
			return types.InteractionCancelled, goerr.Wrap(err, "failed to post cancellation", goerr.V(PendingActionIDKey, pendingID))
		}
		uc.record(ctx, act, pendingID, consumed, types.InteractionCancelled, false, nil)
		return types.InteractionCancelled, nil
	}

	text, execErr := uc.executor.Execute(ctx, consumed, intent.Notify())
	outcome := types.InteractionExecuted
	if execErr != nil {
		errutil.Handle(ctx, execErr, "failed to execute pending action")
		outcome = types.InteractionFailed
		text = failedActionPrefix + execErr.Error()
	}
	uc.record(ctx, act, pendingID, consumed, outcome, intent.Notify(), execErr)

	if err := svc.UpdateMessage(ctx, act.ChannelID, act.MessageTS, []goslack.Block{}, text); err != nil {
		return outcome, goerr.Wrap(err, "failed to post execution result", goerr.V(PendingActionIDKey, pendingID))
	}
	return outcome, nil
}

// botToken prefers the credential stored with the pending action and falls
// back to the team's current installation.
func (uc *InteractionUseCase) botToken(ctx context.Context, pending *model.PendingAction, teamID string) (string, error) {
	if pending != nil && pending.BotToken != "" {
		return pending.BotToken, nil
	}

	resolved, err := uc.resolver.Resolve(ctx, teamID)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve workspace for block action", goerr.V("team_id", teamID))
	}
	if pending != nil && resolved != nil {
		logging.From(ctx).Warn("pending action has no bot token, fall back to installation token",
			PendingActionIDKey, pending.ID,
			"team_id", teamID,
		)
	}
	return resolved.BotToken(), nil
}

func (uc *InteractionUseCase) record(ctx context.Context, act BlockAction, pendingID string, pending *model.PendingAction, outcome types.InteractionOutcome, notify bool, execErr error) {
	entry := &audit.Entry{
		PendingActionID: pendingID,
		UserID:          act.UserID,
		ChannelID:       act.ChannelID,
		Outcome:         outcome,
		Notify:          notify,
		RecordedAt:      time.Now(),
	}
	if pending != nil {
		entry.WorkspaceID = pending.WorkspaceID
		entry.ActionType = pending.Action.Type()
		if raw, err := model.MarshalAction(pending.Action); err == nil {
			entry.Action = json.RawMessage(raw)
		}
	}
	if execErr != nil {
		entry.Error = execErr.Error()
	}

	if err := uc.audit.Record(ctx, entry); err != nil {
		errutil.Handle(ctx, err, "failed to record audit entry")
	}
}
