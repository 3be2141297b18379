package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/urfave/cli/v3"
)

// LLM holds configuration for the assistant's model provider
type LLM struct {
	provider       string
	geminiProject  string
	geminiLocation string
	claudeAPIKey   string
}

// Flags returns CLI flags for LLM configuration
func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "LLM provider (gemini or claude)",
			Category:    "LLM",
			Value:       "gemini",
			Sources:     cli.EnvVars("GYGES_LLM_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "LLM",
			Sources:     cli.EnvVars("GYGES_GEMINI_PROJECT"),
			Destination: &x.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "LLM",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GYGES_GEMINI_LOCATION"),
			Destination: &x.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "claude-api-key",
			Usage:       "Anthropic API key for Claude",
			Category:    "LLM",
			Sources:     cli.EnvVars("GYGES_CLAUDE_API_KEY"),
			Destination: &x.claudeAPIKey,
		},
	}
}

func (x LLM) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", x.provider),
		slog.String("gemini_project", x.geminiProject),
		slog.String("gemini_location", x.geminiLocation),
		slog.Int("claude_api_key.len", len(x.claudeAPIKey)),
	)
}

// Configure creates the LLM client for the selected provider
func (x *LLM) Configure(ctx context.Context) (gollem.LLMClient, error) {
	switch x.provider {
	case "", "gemini":
		if x.geminiProject == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "--gemini-project is required for gemini provider")
		}
		client, err := gemini.New(ctx, x.geminiProject, x.geminiLocation)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	case "claude":
		if x.claudeAPIKey == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "--claude-api-key is required for claude provider")
		}
		client, err := claude.New(ctx, x.claudeAPIKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Claude client")
		}
		return client, nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid llm provider", goerr.V("provider", x.provider))
	}
}
