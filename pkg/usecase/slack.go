package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/agent/tool"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/service/confirmation"
	"github.com/secmon-lab/gyges/pkg/service/dedup"
	slacksvc "github.com/secmon-lab/gyges/pkg/service/slack"
	"github.com/secmon-lab/gyges/pkg/utils/errutil"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"github.com/slack-go/slack/slackevents"
)

const (
	thinkingText        = ":hourglass_flowing_sand: Thinking..."
	doneText            = "Done!"
	somethingWrongText  = ":x: Something went wrong: "
	threadFetchLimit    = 100
	directMessageChType = "im"
)

// chatMessage is the part of app_mention and message events the pipeline uses
type chatMessage struct {
	Type        string
	UserID      string
	BotID       string
	SubType     string
	Text        string
	TS          string
	ThreadTS    string
	ChannelID   string
	ChannelType string
}

// SlackUseCase turns chat events into assistant replies and confirmation
// messages. It never changes status reports itself.
type SlackUseCase struct {
	repo      interfaces.Repository
	dedup     dedup.Deduplicator
	resolver  *WorkspaceResolver
	slack     slacksvc.Factory
	assistant *AssistantUseCase
	store     *confirmation.Store
}

func NewSlackUseCase(repo interfaces.Repository, deduplicator dedup.Deduplicator, resolver *WorkspaceResolver, slackFactory slacksvc.Factory, assistant *AssistantUseCase, store *confirmation.Store) *SlackUseCase {
	return &SlackUseCase{
		repo:      repo,
		dedup:     deduplicator,
		resolver:  resolver,
		slack:     slackFactory,
		assistant: assistant,
		store:     store,
	}
}

// HandleSlackEvent processes one Events API callback
func (uc *SlackUseCase) HandleSlackEvent(ctx context.Context, event *slackevents.EventsAPIEvent) error {
	if event == nil || event.Type != slackevents.CallbackEvent {
		return nil
	}
	logger := logging.From(ctx)

	if cb, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok && cb.EventID != "" {
		dup, err := uc.dedup.IsDuplicate(ctx, cb.EventID)
		if err != nil {
			return goerr.Wrap(err, "failed to check event duplication", goerr.V("event_id", cb.EventID))
		}
		if dup {
			logger.Debug("skip duplicated slack event", "event_id", cb.EventID)
			return nil
		}
	}

	switch data := event.InnerEvent.Data.(type) {
	case *slackevents.AppUninstalledEvent, *slackevents.TokensRevokedEvent:
		return uc.handleUninstall(ctx, event.TeamID)
	case *slackevents.AppMentionEvent:
		return uc.handleMessage(ctx, event.TeamID, &chatMessage{
			Type:      string(slackevents.AppMention),
			UserID:    data.User,
			BotID:     data.BotID,
			Text:      data.Text,
			TS:        data.TimeStamp,
			ThreadTS:  data.ThreadTimeStamp,
			ChannelID: data.Channel,
		})
	case *slackevents.MessageEvent:
		return uc.handleMessage(ctx, event.TeamID, &chatMessage{
			Type:        string(slackevents.Message),
			UserID:      data.User,
			BotID:       data.BotID,
			SubType:     data.SubType,
			Text:        data.Text,
			TS:          data.TimeStamp,
			ThreadTS:    data.ThreadTimeStamp,
			ChannelID:   data.Channel,
			ChannelType: data.ChannelType,
		})
	default:
		logger.Debug("ignore slack event", "type", event.InnerEvent.Type)
		return nil
	}
}

func (uc *SlackUseCase) handleUninstall(ctx context.Context, teamID string) error {
	if teamID == "" {
		return nil
	}
	if err := uc.repo.Integration().DeleteByTeamID(ctx, teamID); err != nil {
		errutil.Handle(ctx, err, "failed to delete slack integration")
		return nil
	}
	logging.From(ctx).Info("cleaned up slack integration", "team_id", teamID)
	return nil
}

func (uc *SlackUseCase) handleMessage(ctx context.Context, teamID string, msg *chatMessage) error {
	logger := logging.From(ctx)

	if msg.Type == string(slackevents.Message) && (msg.BotID != "" || msg.SubType != "") {
		return nil
	}
	if teamID == "" || msg.ChannelID == "" || msg.TS == "" {
		return nil
	}

	resolved, err := uc.resolver.Resolve(ctx, teamID)
	if err != nil {
		return err
	}
	if resolved == nil {
		logger.Warn("no integration found for team", "team_id", teamID)
		return nil
	}
	botUserID := resolved.Integration.BotUserID

	if msg.Type == string(slackevents.Message) && msg.ChannelType != directMessageChType {
		if botUserID == "" || !strings.Contains(msg.Text, "<@"+botUserID+">") {
			return nil
		}
	}

	svc, err := uc.slack(resolved.BotToken())
	if err != nil {
		return goerr.Wrap(err, "failed to create slack service", goerr.V("team_id", teamID))
	}

	threadTS := msg.ThreadTS
	if threadTS == "" {
		threadTS = msg.TS
	}

	thinkingTS, err := svc.PostThreadReply(ctx, msg.ChannelID, threadTS, thinkingText)
	if err != nil {
		return goerr.Wrap(err, "failed to post thinking message", goerr.V("channel_id", msg.ChannelID))
	}
	if thinkingTS == "" {
		return goerr.New("no ts returned for thinking message", goerr.V("channel_id", msg.ChannelID))
	}

	ctx = tool.WithUpdate(ctx, func(ctx context.Context, message string) {
		if err := svc.UpdateMessage(ctx, msg.ChannelID, thinkingTS, nil, ":hourglass_flowing_sand: "+message); err != nil {
			logging.From(ctx).Warn("failed to post progress", "error", err.Error())
		}
	})

	if err := uc.respond(ctx, svc, resolved, msg, threadTS, thinkingTS); err != nil {
		errutil.Handle(ctx, err, "failed to respond to slack message")
		if updateErr := svc.UpdateMessage(ctx, msg.ChannelID, thinkingTS, nil, somethingWrongText+err.Error()); updateErr != nil {
			return goerr.Wrap(updateErr, "failed to post error message", goerr.V("channel_id", msg.ChannelID))
		}
	}
	return nil
}

func (uc *SlackUseCase) respond(ctx context.Context, svc slacksvc.Service, resolved *ResolvedWorkspace, msg *chatMessage, threadTS, thinkingTS string) error {
	var thread []slacksvc.Message
	if msg.ThreadTS != "" {
		replies, err := svc.GetThreadMessages(ctx, msg.ChannelID, msg.ThreadTS, threadFetchLimit)
		if err != nil {
			return goerr.Wrap(err, "failed to get thread messages", goerr.V("thread_ts", msg.ThreadTS))
		}
		for _, r := range replies {
			if r.TS != thinkingTS {
				thread = append(thread, r)
			}
		}
	} else {
		thread = []slacksvc.Message{{TS: msg.TS, UserID: msg.UserID, Text: msg.Text}}
	}

	reply, err := uc.assistant.Propose(ctx, resolved.Workspace, thread, resolved.Integration.BotUserID, msg.Text)
	if err != nil {
		return err
	}

	proposal := reply.Confirmation()
	if proposal == nil {
		text := reply.Text
		if text == "" {
			text = doneText
		}
		if err := svc.UpdateMessage(ctx, msg.ChannelID, thinkingTS, nil, text); err != nil {
			return goerr.Wrap(err, "failed to post reply")
		}
		return nil
	}

	return uc.confirm(ctx, svc, resolved, msg, threadTS, thinkingTS, proposal.Action)
}

// confirm stores the proposal and renders it. A thread holds one pending
// action: a newer proposal replaces the older one under the same id and both
// messages are redrawn, so either set of buttons acts on the latest proposal.
func (uc *SlackUseCase) confirm(ctx context.Context, svc slacksvc.Service, resolved *ResolvedWorkspace, msg *chatMessage, threadTS, thinkingTS string, action model.Action) error {
	existing, err := uc.store.FindByThread(ctx, threadTS)
	if err != nil {
		return goerr.Wrap(err, "failed to find pending action", goerr.V("thread_ts", threadTS))
	}

	if existing != nil {
		replaced, err := uc.store.Replace(ctx, existing.ID, action)
		if err != nil {
			return goerr.Wrap(err, "failed to replace pending action", goerr.V(PendingActionIDKey, existing.ID))
		}
		if !replaced {
			// consumed or expired since the lookup; start a new record
			existing = nil
		}
	}

	if existing != nil {
		text, blocks := RenderConfirmation(existing.ID, action)
		if err := svc.UpdateMessage(ctx, msg.ChannelID, thinkingTS, blocks, text); err != nil {
			return goerr.Wrap(err, "failed to post confirmation")
		}
		if err := svc.UpdateMessage(ctx, existing.ChannelID, existing.MessageTS, blocks, text); err != nil {
			return goerr.Wrap(err, "failed to redraw previous confirmation", goerr.V(PendingActionIDKey, existing.ID))
		}
		return nil
	}

	id, err := uc.store.Store(ctx, &model.PendingAction{
		WorkspaceID: resolved.Workspace.ID,
		Limits:      resolved.Workspace.Limits,
		BotToken:    resolved.BotToken(),
		ChannelID:   msg.ChannelID,
		ThreadTS:    threadTS,
		MessageTS:   thinkingTS,
		UserID:      msg.UserID,
		Action:      action,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to store pending action")
	}

	text, blocks := RenderConfirmation(id, action)
	if err := svc.UpdateMessage(ctx, msg.ChannelID, thinkingTS, blocks, text); err != nil {
		return goerr.Wrap(err, "failed to post confirmation", goerr.V(PendingActionIDKey, id))
	}
	return nil
}
