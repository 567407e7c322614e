package commands

import (
	"context"

	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// MigrationCommands returns all migration-related commands.
func MigrationCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "init",
			Usage: "Initialize migration tables",
			Action: func(ctx context.Context, _ *cli.Command) error {
				return deps.Migrator.Init(ctx)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run pending migrations",
			Action: withLock(deps, func(ctx context.Context) error {
				group, err := deps.Migrator.Migrate(ctx)
				if err != nil {
					return err
				}

				logGroup(deps.Logger, group, "Successfully migrated", "No new migrations to run (database is up to date)")

				return nil
			}),
		},
		{
			Name:  "rollback",
			Usage: "Rollback the last migration group",
			Action: withLock(deps, func(ctx context.Context) error {
				group, err := deps.Migrator.Rollback(ctx)
				if err != nil {
					return err
				}

				logGroup(deps.Logger, group, "Successfully rolled back", "No groups to roll back")

				return nil
			}),
		},
		{
			Name:   "status",
			Usage:  "Show migration status",
			Action: handleStatus(deps),
		},
		{
			Name:      "create",
			Usage:     "Create a new Go migration file",
			ArgsUsage: "NAME",
			Action:    handleCreate(deps),
		},
	}
}

// withLock runs fn while holding the migration table lock.
func withLock(deps *CLIDependencies, fn func(context.Context) error) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		if err := deps.Migrator.Lock(ctx); err != nil {
			return err
		}
		defer deps.Migrator.Unlock(ctx) //nolint:errcheck // -

		return fn(ctx)
	}
}

func logGroup(logger *zap.Logger, group *migrate.MigrationGroup, applied, empty string) {
	if group.IsZero() {
		logger.Info(empty)
		return
	}

	logger.Info(applied, zap.String("group", group.String()))
}

// handleStatus handles the 'status' command.
func handleStatus(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		ms, err := deps.Migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}

		deps.Logger.Info("Migration status",
			zap.String("migrations", ms.String()),
			zap.String("unapplied", ms.Unapplied().String()),
			zap.String("last_group", ms.LastGroup().String()),
		)

		return nil
	}
}

// handleCreate handles the 'create' command.
func handleCreate(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrNameRequired
		}

		mf, err := deps.Migrator.CreateGoMigration(ctx, c.Args().First())
		if err != nil {
			return err
		}

		deps.Logger.Info("Created Go migration",
			zap.String("name", mf.Name),
			zap.String("path", mf.Path),
		)

		return nil
	}
}
