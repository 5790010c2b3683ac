package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kao/internal/observability"
)

// migrator is implemented by stores that keep a schema.
type migrator interface {
	Migrate(ctx context.Context) error
}

func newMigrateCmd(provider repositoryProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the statement store schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("migrate")

			repo, err := provider.Open(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Warn("Failed to close store", zap.Error(err))
				}
			}()

			m, ok := repo.(migrator)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "backend %q has no schema; nothing to migrate\n", cfg.Store().Backend)
				return nil
			}
			if err := m.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.Info("Schema migrated", zap.String("backend", cfg.Store().Backend))
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
