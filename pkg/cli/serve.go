package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/cli/config"
	httpctrl "github.com/secmon-lab/gyges/pkg/controller/http"
	"github.com/secmon-lab/gyges/pkg/usecase"
	"github.com/secmon-lab/gyges/pkg/utils/async"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var maxSteps int
	var repoCfg config.Repository
	var slackCfg config.Slack
	var llmCfg config.LLM
	var sentryCfg config.Sentry
	var auditCfg config.Audit
	var seedCfg config.SeedFile

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("GYGES_ADDR"),
			Destination: &addr,
		},
		&cli.IntFlag{
			Name:        "assistant-max-steps",
			Usage:       "Maximum model calls per chat message",
			Value:       usecase.DefaultMaxSteps,
			Sources:     cli.EnvVars("GYGES_ASSISTANT_MAX_STEPS"),
			Destination: &maxSteps,
		},
	}

	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, auditCfg.Flags()...)
	flags = append(flags, seedCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server for Slack webhooks",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()
			logger.Info("Serve configuration",
				"addr", addr,
				"repository", repoCfg,
				"slack", slackCfg,
				"llm", llmCfg,
				"sentry", sentryCfg,
				"audit", auditCfg,
			)

			flush, err := sentryCfg.Configure(version)
			if err != nil {
				return err
			}
			defer flush()

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			seed, err := seedCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load seed configuration")
			}
			if seed != nil {
				if err := seed.Apply(ctx, repo); err != nil {
					return goerr.Wrap(err, "failed to apply seed configuration")
				}
				logger.Info("Seed applied",
					"workspaces", len(seed.Workspaces),
					"integrations", len(seed.Integrations),
					"pages", len(seed.Pages),
				)
			}

			deduplicator, err := repoCfg.Deduplicator(repo)
			if err != nil {
				return err
			}

			slackFactory, err := slackCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure slack")
			}

			llmClient, err := llmCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure LLM client")
			}

			recorder, closeAudit, err := auditCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer closeAudit()

			uc := usecase.New(repo, llmClient, slackFactory,
				usecase.WithDeduplicator(deduplicator),
				usecase.WithAudit(recorder),
				usecase.WithPublicStatusDomain(slackCfg.StatusDomain()),
				usecase.WithAssistantMaxSteps(maxSteps),
			)

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(httpctrl.WithSlack(uc, slackCfg.SigningSecret())),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				// Acknowledged events are still being processed
				if !async.Wait(20 * time.Second) {
					logger.Warn("Async handlers did not finish before shutdown")
				}

				logger.Info("Server shutdown completed")
				return nil
			}
		},
	}
}
