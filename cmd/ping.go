package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/kao/internal/observability"
)

const (
	pingClass = "urn:kao:ping"
	pingQuery = "ASK {}"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func newPingCmd(provider repositoryProvider) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the statement store and SPARQL endpoint are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("ping")
			out := cmd.OutOrStdout()

			w, err := newWiring(ctx, provider, cfg, logger)
			if err != nil {
				return err
			}
			defer w.close(logger)

			if p, ok := w.repo.(pinger); ok {
				if err := p.Ping(ctx); err != nil {
					return fmt.Errorf("store ping failed: %w", err)
				}
			}

			// A read through a full session proves connect, begin and commit.
			k := w.accessObject(cfg, pingClass, logger)
			if _, err := k.RetrieveAllInstances(ctx); err != nil {
				return fmt.Errorf("store session failed: %w", err)
			}
			fmt.Fprintf(out, "store (%s): ok\n", cfg.Store().Backend)

			if w.runner == nil {
				fmt.Fprintln(out, "sparql: not configured")
			} else {
				if _, err := k.ExecuteBooleanQuery(ctx, pingQuery); err != nil {
					return fmt.Errorf("sparql ping failed: %w", err)
				}
				fmt.Fprintf(out, "sparql (%s): ok\n", cfg.SPARQL().Endpoint)
			}

			return w.dumpMetrics(out)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall deadline for the checks")
	return cmd
}
