package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
)

const serviceName = "migrate"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the marketplace Postgres schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", "", "read migrations from this directory instead of the embedded set")

	root.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Write an empty migration file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := migrate.CreateSQLMigration(orDefault(dir), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check migration names and goose annotations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				count, err := migrate.ValidateDir(orDefault(dir))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d migrations ok\n", count)
				return nil
			},
		},
		withRunner(&dir, "up", "Apply all pending migrations", cobra.NoArgs,
			func(ctx context.Context, cmd *cobra.Command, r *migrate.Runner, _ []string) error {
				applied, err := r.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations %v\n", len(applied), applied)
				return nil
			}),
		withRunner(&dir, "down", "Roll back the latest migration", cobra.NoArgs,
			func(ctx context.Context, cmd *cobra.Command, r *migrate.Runner, _ []string) error {
				version, err := r.Down(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back", version)
				return nil
			}),
		withRunner(&dir, "to <version>", "Migrate up or down to the given version", cobra.ExactArgs(1),
			func(ctx context.Context, cmd *cobra.Command, r *migrate.Runner, args []string) error {
				ran, err := r.MigrateTo(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ran %d migrations %v\n", len(ran), ran)
				return nil
			}),
		withRunner(&dir, "status", "Show applied and pending migrations", cobra.NoArgs,
			func(ctx context.Context, cmd *cobra.Command, r *migrate.Runner, _ []string) error {
				statuses, err := r.Status(ctx)
				if err != nil {
					return err
				}
				for _, s := range statuses {
					applied := "-"
					if !s.AppliedAt.IsZero() {
						applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-9s %-20s %s\n", s.State, applied, s.Source.Path)
				}
				return nil
			}),
	)
	return root
}

func orDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

type runnerFunc func(ctx context.Context, cmd *cobra.Command, r *migrate.Runner, args []string) error

// withRunner builds a subcommand that connects to the configured database
// before handing a Runner to fn.
func withRunner(dir *string, use, short string, args cobra.PositionalArgs, fn runnerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			logg := logger.New(logger.Options{ServiceName: serviceName})
			if err := godotenv.Load(); err != nil {
				logg.Debug(cmd.Context(), "no .env file loaded")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logg = logger.New(logger.Options{
				ServiceName: serviceName,
				Level:       logger.ParseLevel(cfg.App.LogLevel),
				WarnStack:   cfg.App.LogWarnStack,
				Format:      cfg.App.LogFormat,
			})
			ctx := logg.WithFields(context.Background(), map[string]any{
				"env": cfg.App.Env,
				"cmd": cmd.Name(),
			})

			dbClient, err := db.New(ctx, cfg.DB, logg)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer dbClient.Close()

			sqlDB, err := dbClient.DB().DB()
			if err != nil {
				return fmt.Errorf("sql handle: %w", err)
			}
			runner, err := migrate.NewRunner(sqlDB, *dir)
			if err != nil {
				return err
			}
			return fn(ctx, cmd, runner, argv)
		},
	}
}
