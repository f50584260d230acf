package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/lovematch/core/buildinfo"
	corecmd "github.com/m3rciful/lovematch/core/cmd"
	"github.com/m3rciful/lovematch/core/logger"
	"github.com/m3rciful/lovematch/internal/app"
	"github.com/m3rciful/lovematch/internal/config"
)

const defaultConfigPath = "config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "lovematch",
	Short:         "Telegram dating bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot and the metrics listener",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for SQL storage backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := corecmd.ResolveConfigPath(runnerOptions())
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
			return err
		}
		defer logger.Shutdown()

		if !cfg.Database.Enabled() {
			fmt.Fprintf(cmd.OutOrStdout(), "storage backend %q uses no database; nothing to migrate\n", cfg.Storage.Backend)
			return nil
		}
		return app.Migrate(cfg.Database)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "lovematch %s\n", buildinfo.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $CONFIG_PATH, then "+defaultConfigPath+")")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func runnerOptions() corecmd.Options {
	return corecmd.Options{
		ConfigPath:        configPath,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			c, ok := cfg.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return app.Bootstrap(c, app.Options{})
		},
	}
}

func serve() error {
	return corecmd.Run(runnerOptions())
}
