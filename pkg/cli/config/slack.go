package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

type Slack struct {
	signingSecret string
	apiURL        string
	statusDomain  string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack Signing Secret (for webhook verification)",
			Category:    "Slack",
			Destination: &x.signingSecret,
			Sources:     cli.EnvVars("GYGES_SLACK_SIGNING_SECRET"),
		},
		&cli.StringFlag{
			Name:        "slack-api-url",
			Usage:       "Override the Slack Web API base URL",
			Category:    "Slack",
			Destination: &x.apiURL,
			Sources:     cli.EnvVars("GYGES_SLACK_API_URL"),
		},
		&cli.StringFlag{
			Name:        "status-page-domain",
			Usage:       "Domain that serves status pages by slug (e.g. status.example.com)",
			Category:    "Slack",
			Destination: &x.statusDomain,
			Sources:     cli.EnvVars("GYGES_STATUS_PAGE_DOMAIN"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("signing-secret.len", len(x.signingSecret)),
		slog.String("api-url", x.apiURL),
		slog.String("status-page-domain", x.statusDomain),
	)
}

// Configure returns a factory that builds a Slack client per bot token
func (x *Slack) Configure() (slack.Factory, error) {
	if x.signingSecret == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "--slack-signing-secret is required")
	}

	var opts []slack.Option
	if x.apiURL != "" {
		opts = append(opts, slack.WithAPIURL(x.apiURL))
	}
	return slack.NewFactory(opts...), nil
}

// SigningSecret returns the Slack signing secret
func (x *Slack) SigningSecret() string {
	return x.signingSecret
}

// StatusDomain returns the domain used to build report links
func (x *Slack) StatusDomain() string {
	return x.statusDomain
}
