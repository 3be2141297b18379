package slack

import (
	"context"

	"github.com/slack-go/slack"
)

// Service is the outbound Slack Web API surface used by the chat pipeline.
// One Service is bound to one bot token.
type Service interface {
	// PostThreadReply posts text as a reply in threadTS and returns the new
	// message timestamp
	PostThreadReply(ctx context.Context, channelID, threadTS, text string) (string, error)

	// UpdateMessage replaces text and blocks of an existing message. A nil or
	// empty blocks clears the interactive part of the message.
	UpdateMessage(ctx context.Context, channelID, ts string, blocks []slack.Block, text string) error

	// PostEphemeral posts text visible only to userID
	PostEphemeral(ctx context.Context, channelID, userID, text string) error

	// GetThreadMessages returns up to limit messages of a thread, oldest first
	GetThreadMessages(ctx context.Context, channelID, threadTS string, limit int) ([]Message, error)
}

// Factory builds a Service for a bot token. Tokens are per workspace and may
// rotate, so the pipeline creates services on demand.
type Factory func(token string) (Service, error)

// Message is a thread message as seen by the assistant
type Message struct {
	TS     string
	UserID string
	BotID  string
	Text   string
}

// FromBot reports whether the message was authored by a bot integration
func (m Message) FromBot() bool {
	return m.BotID != ""
}
