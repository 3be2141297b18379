package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/cli/config"
	"github.com/secmon-lab/gyges/pkg/repository/firestore"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var dryRun bool
	var seedCfg config.SeedFile

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required)",
			Required:    true,
			Sources:     cli.EnvVars("GYGES_FIRESTORE_PROJECT_ID"),
			Destination: &projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("GYGES_FIRESTORE_DATABASE_ID"),
			Destination: &databaseID,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview index changes without applying them or seeding",
			Destination: &dryRun,
		},
	}
	flags = append(flags, seedCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes and apply the seed file",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()
			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"dryRun", dryRun)

			seed, err := seedCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load seed configuration")
			}

			if err := migrateIndexes(ctx, projectID, databaseID, dryRun); err != nil {
				return err
			}

			if seed == nil || dryRun {
				return nil
			}

			repo, err := firestore.New(ctx, projectID, databaseID)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize firestore repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			if err := seed.Apply(ctx, repo); err != nil {
				return goerr.Wrap(err, "failed to apply seed configuration")
			}
			logger.Info("Seed applied",
				"workspaces", len(seed.Workspaces),
				"integrations", len(seed.Integrations),
				"pages", len(seed.Pages),
			)
			return nil
		},
	}
}

func migrateIndexes(ctx context.Context, projectID, databaseID string, dryRun bool) error {
	logger := logging.From(ctx)

	client, err := fireconf.NewClient(ctx, projectID, databaseID)
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close fireconf client", "error", err.Error())
		}
	}()

	indexConfig := getIndexConfig()

	if !dryRun {
		if err := client.Migrate(ctx, indexConfig); err != nil {
			return goerr.Wrap(err, "failed to apply migrations")
		}
		logger.Info("Migrations applied successfully")
		return nil
	}

	plan, err := client.GetMigrationPlan(ctx, indexConfig)
	if err != nil {
		return goerr.Wrap(err, "failed to create migration plan")
	}
	if len(plan.Steps) == 0 {
		logger.Info("No changes required")
		return nil
	}
	for _, step := range plan.Steps {
		logger.Info("Migration step",
			"collection", step.Collection,
			"operation", step.Operation,
			"description", step.Description,
			"destructive", step.Destructive)
	}
	return nil
}

// getIndexConfig returns the Firestore index configuration
func getIndexConfig() *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: "status_reports",
				Indexes: []fireconf.Index{
					// List with a status filter: status ASC, created_at DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "status", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderDescending},
						},
					},
				},
			},
		},
	}
}
