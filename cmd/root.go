// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kao/internal/config"
	"github.com/xkilldash9x/kao/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// NewRootCmd builds the kaoctl command tree. Each call returns a fresh tree
// with its own viper instance.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultRepositoryProvider{})
}

func newRootCmd(provider repositoryProvider) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "kaoctl",
		Short:         "kaoctl manages knowledge access object stores.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Config and logging come up before any subcommand runs.
			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// A fallback logger so the failure still reaches the console.
				observability.InitializeLogger(config.NewDefaultConfig().Logger())
				return fmt.Errorf("failed to load config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting kaoctl",
				zap.String("version", Version),
				zap.String("backend", cfg.Store().Backend),
			)

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "statement store backend (memory or postgres)")
	rootCmd.PersistentFlags().String("endpoint", "", "SPARQL query endpoint URL")
	rootCmd.PersistentFlags().String("log-level", "", "log level")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newMigrateCmd(provider),
		newPingCmd(provider),
		newQueryCmd(provider),
		newInstancesCmd(provider),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree against ctx.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		}
	}
	return err
}

// initializeConfig reads the config file and KAO_ environment variables, then
// binds the persistent flags over them.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("KAO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"store.backend":   "backend",
		"sparql.endpoint": "endpoint",
		"logger.level":    "log-level",
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
	return nil
}

func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
