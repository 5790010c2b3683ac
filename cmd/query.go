package cmd

import (
	"errors"
	"fmt"
	"io"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/kao"
	"github.com/xkilldash9x/kao/internal/observability"
)

// Query output modes.
const (
	kindList   = "list"
	kindSingle = "single"
	kindStream = "stream"
	kindAsk    = "ask"
	kindUpdate = "update"
)

var errNoEndpoint = errors.New("no SPARQL endpoint configured; set sparql.endpoint or --endpoint")

func newQueryCmd(provider repositoryProvider) *cobra.Command {
	var (
		kind     string
		contexts []string
	)

	cmd := &cobra.Command{
		Use:   "query [flags] QUERY",
		Short: "Run a raw SPARQL query or update against the configured endpoint",
		Long: `Runs QUERY through an access object and prints the outcome as JSON.
--context applies to the list and stream kinds; the other kinds are scoped to
the graphs named in the query's FROM clauses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("query")

			w, err := newWiring(ctx, provider, cfg, logger)
			if err != nil {
				return err
			}
			defer w.close(logger)
			if w.runner == nil {
				return errNoEndpoint
			}

			k := w.accessObject(cfg, "", logger)
			graphs := make([]schemas.IRI, 0, len(contexts))
			for _, c := range contexts {
				graphs = append(graphs, schemas.IRI(c))
			}

			if err := runQuery(cmd, k, kind, args[0], graphs); err != nil {
				return err
			}
			return w.dumpMetrics(cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", kindList, "result shape: list, single, stream, ask or update")
	cmd.Flags().StringSliceVar(&contexts, "context", nil, "graph IRI to scope the query to (repeatable)")
	return cmd
}

func runQuery(cmd *cobra.Command, k *kao.KAO, kind, query string, graphs []schemas.IRI) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch kind {
	case kindList:
		sols, err := k.ExecuteSPARQLQueryResultList(ctx, query, graphs...)
		if err != nil {
			return err
		}
		return writeJSON(out, sols)

	case kindSingle:
		sol, err := k.ExecuteSPARQLQuerySingleResult(ctx, query)
		if err != nil {
			return err
		}
		return writeJSON(out, sol)

	case kindStream:
		res, err := k.ExecuteQueryAsIterator(ctx, query, graphs...)
		defer res.Close()
		if err != nil {
			return err
		}
		enc := json.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
		for res.Next() {
			if err := enc.Encode(res.Solution()); err != nil {
				return err
			}
		}
		return res.Err()

	case kindAsk:
		ok, err := k.ExecuteBooleanQuery(ctx, query)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ok)
		return nil

	case kindUpdate:
		ok, err := k.ExecuteSPARQLUpdateQuery(ctx, query)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ok)
		return nil

	default:
		return fmt.Errorf("unknown query kind %q", kind)
	}
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
