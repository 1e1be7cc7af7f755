// Command basemerge merges new polygon features into base maps across a set
// of workspaces.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/beetlebugorg/basemerge/internal/config"
	"github.com/beetlebugorg/basemerge/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds state shared by the subcommands.
type app struct {
	configPath string
	envFile    string
	logLevel   string
	jsonLogs   bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "basemerge",
		Short: "Merge new polygon features into a base map",
		Long: `basemerge overlays a layer of new polygons on an authoritative base map.

Base polygons mostly covered by a new feature take its attributes, polygons
partly covered are split along the new boundary, and small overlaps are
ignored. The merged layer covers exactly the area of the base map.

Each workspace directory holds the input layers and a checkpoint database,
so interrupted runs resume where they stopped.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "basemerge.yaml", "Configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env", ".env", "Environment file loaded before the configuration")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.jsonLogs, "json", false, "Write logs as JSON")

	root.AddCommand(
		newRunCmd(a),
		newClassifyCmd(a),
		newStatusCmd(a),
		newResetCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	config.LoadEnv(a.envFile)
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("json") {
		cfg.Log.JSON = a.jsonLogs
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
