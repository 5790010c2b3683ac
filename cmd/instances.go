package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kao/api/schemas"
	"github.com/xkilldash9x/kao/internal/kao"
	"github.com/xkilldash9x/kao/internal/observability"
)

// instanceFlags are shared by every instances subcommand.
type instanceFlags struct {
	class    string
	contexts []string
}

func (f *instanceFlags) graphs() []schemas.IRI {
	out := make([]schemas.IRI, 0, len(f.contexts))
	for _, c := range f.contexts {
		out = append(out, schemas.IRI(c))
	}
	return out
}

func newInstancesCmd(provider repositoryProvider) *cobra.Command {
	flags := &instanceFlags{}

	cmd := &cobra.Command{
		Use:   "instances",
		Short: "Create, read and delete instances of one entity type",
	}
	cmd.PersistentFlags().StringVar(&flags.class, "class", "", "entity type IRI the access object is bound to")
	cmd.PersistentFlags().StringSliceVar(&flags.contexts, "context", nil, "graph IRI to scope the operation to (repeatable)")
	_ = cmd.MarkPersistentFlagRequired("class")

	// withAccessObject wires a KAO for the duration of one subcommand.
	withAccessObject := func(run func(cmd *cobra.Command, k *kao.KAO, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("instances")

			w, err := newWiring(ctx, provider, cfg, logger)
			if err != nil {
				return err
			}
			defer w.close(logger)

			k := w.accessObject(cfg, schemas.IRI(flags.class), logger)
			if err := run(cmd, k, args); err != nil {
				return err
			}
			return w.dumpMetrics(cmd.ErrOrStderr())
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every instance of the class",
			Args:  cobra.NoArgs,
			RunE: withAccessObject(func(cmd *cobra.Command, k *kao.KAO, _ []string) error {
				all, err := k.RetrieveAllInstances(cmd.Context(), flags.graphs()...)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), all)
			}),
		},
		&cobra.Command{
			Use:   "get IRI",
			Short: "Print one instance",
			Args:  cobra.ExactArgs(1),
			RunE: withAccessObject(func(cmd *cobra.Command, k *kao.KAO, args []string) error {
				inst, err := k.RetrieveInstance(cmd.Context(), "", args[0], flags.graphs()...)
				if err != nil {
					return err
				}
				if inst == nil {
					return fmt.Errorf("instance %s not found", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), inst)
			}),
		},
		newInstancesCreateCmd(withAccessObject, flags),
		&cobra.Command{
			Use:   "delete IRI",
			Short: "Delete every statement about an instance",
			Args:  cobra.ExactArgs(1),
			RunE: withAccessObject(func(cmd *cobra.Command, k *kao.KAO, args []string) error {
				if err := k.Delete(cmd.Context(), "", args[0], flags.graphs()...); err != nil {
					return err
				}
				observability.GetLogger().Info("Instance deleted", zap.String("iri", args[0]))
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			}),
		},
	)
	return cmd
}

func newInstancesCreateCmd(
	withAccessObject func(func(*cobra.Command, *kao.KAO, []string) error) func(*cobra.Command, []string) error,
	flags *instanceFlags,
) *cobra.Command {
	var (
		unique bool
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "create IRI",
		Short: "Create an instance, or with --unique one under a generated name below IRI",
		Args:  cobra.ExactArgs(1),
		RunE: withAccessObject(func(cmd *cobra.Command, k *kao.KAO, args []string) error {
			var (
				inst *schemas.Instance
				err  error
			)
			if unique {
				inst, err = k.CreateWithUniqueID(cmd.Context(), args[0], prefix, flags.graphs()...)
			} else {
				inst, err = k.CreateAt(cmd.Context(), schemas.IRI(args[0]), flags.graphs()...)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), inst)
		}),
	}
	cmd.Flags().BoolVar(&unique, "unique", false, "treat IRI as a base and append a generated identifier")
	cmd.Flags().StringVar(&prefix, "prefix", "", "name prefix placed before the generated identifier")
	return cmd
}
