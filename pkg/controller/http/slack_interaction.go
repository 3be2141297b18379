package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/usecase"
	"github.com/secmon-lab/gyges/pkg/utils/async"
	"github.com/secmon-lab/gyges/pkg/utils/errutil"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"github.com/slack-go/slack"
)

// SlackInteractionHandler handles Slack interactive component payloads
type SlackInteractionHandler struct {
	interactionUC *usecase.InteractionUseCase
}

func NewSlackInteractionHandler(interactionUC *usecase.InteractionUseCase) *SlackInteractionHandler {
	return &SlackInteractionHandler{interactionUC: interactionUC}
}

// ServeHTTP acknowledges every authenticated request and dispatches the first
// block action of a block_actions payload.
func (h *SlackInteractionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, ok := SlackPayloadFromContext(ctx)
	if !ok {
		errutil.HandleHTTP(ctx, w, goerr.New("no verified slack payload"), http.StatusUnauthorized)
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal(payload, &callback); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse interaction payload"), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	if callback.Type != slack.InteractionTypeBlockActions {
		return
	}
	actions := callback.ActionCallback.BlockActions
	if len(actions) == 0 || actions[0] == nil {
		return
	}

	act := usecase.BlockAction{
		TeamID:    callback.Team.ID,
		UserID:    callback.User.ID,
		ChannelID: callback.Channel.ID,
		MessageTS: callback.Container.MessageTs,
		ActionID:  actions[0].ActionID,
	}
	if act.MessageTS == "" {
		act.MessageTS = callback.Message.Timestamp
	}

	async.Dispatch(ctx, func(ctx context.Context) error {
		outcome, err := h.interactionUC.HandleBlockAction(ctx, act)
		if err != nil {
			return goerr.Wrap(err, "failed to handle block action", goerr.V("action_id", act.ActionID))
		}
		logging.From(ctx).Info("handled block action",
			"action_id", act.ActionID,
			"user_id", act.UserID,
			"outcome", outcome.String(),
		)
		return nil
	})
}
