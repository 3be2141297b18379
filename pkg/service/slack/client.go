package slack

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// client implements Service interface
type client struct {
	api *slack.Client
}

// Option is a functional option for client configuration
type Option func(*clientConfig)

type clientConfig struct {
	apiURL string
}

// WithAPIURL points the client at another Slack API endpoint (tests, proxies).
// The URL must end with a slash.
func WithAPIURL(url string) Option {
	return func(c *clientConfig) {
		c.apiURL = url
	}
}

// New creates a new Slack service with the provided bot token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}

	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var apiOpts []slack.Option
	if cfg.apiURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(cfg.apiURL))
	}

	return &client{
		api: slack.New(token, apiOpts...),
	}, nil
}

// NewFactory returns a Factory that applies opts to every created Service
func NewFactory(opts ...Option) Factory {
	return func(token string) (Service, error) {
		return New(token, opts...)
	}
}

func (c *client) PostThreadReply(ctx context.Context, channelID, threadTS, text string) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTS),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to post thread reply",
			goerr.V("channel_id", channelID),
			goerr.V("thread_ts", threadTS))
	}
	return ts, nil
}

func (c *client) UpdateMessage(ctx context.Context, channelID, ts string, blocks []slack.Block, text string) error {
	if blocks == nil {
		blocks = []slack.Block{}
	}

	_, _, _, err := c.api.UpdateMessageContext(ctx, channelID, ts,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to update message",
			goerr.V("channel_id", channelID),
			goerr.V("ts", ts))
	}
	return nil
}

func (c *client) PostEphemeral(ctx context.Context, channelID, userID, text string) error {
	_, err := c.api.PostEphemeralContext(ctx, channelID, userID,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post ephemeral message",
			goerr.V("channel_id", channelID),
			goerr.V("user_id", userID))
	}
	return nil
}

func (c *client) GetThreadMessages(ctx context.Context, channelID, threadTS string, limit int) ([]Message, error) {
	msgs, _, _, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     limit,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get conversation replies",
			goerr.V("channel_id", channelID),
			goerr.V("thread_ts", threadTS))
	}

	result := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		result = append(result, Message{
			TS:     m.Timestamp,
			UserID: m.User,
			BotID:  m.BotID,
			Text:   m.Text,
		})
	}
	return result, nil
}
