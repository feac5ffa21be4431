package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scenariominer/pkg/config"
	"github.com/Sumatoshi-tech/scenariominer/pkg/mcp"
	"github.com/Sumatoshi-tech/scenariominer/pkg/observability"
	"github.com/Sumatoshi-tech/scenariominer/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes one tool:
  - mine_scenarios: mine a local repository and return its scenarios as JSON`,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			cfg.Logging.Format = config.LogFormatJSON
			if debug {
				cfg.SetVerbose()
			}

			minerCfg, err := cfg.MinerConfig()
			if err != nil {
				return err
			}

			providers, err := initObservability(cfg, observability.ModeMCP)
			if err != nil {
				return err
			}
			defer shutdownObservability(providers)

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			miningMetrics, err := observability.NewMiningMetrics(providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:          providers.Logger,
				Metrics:         red,
				MiningMetrics:   miningMetrics,
				Tracer:          providers.Tracer,
				Version:         version.Version,
				Defaults:        minerCfg,
				DefaultLanguage: cfg.Miner.Language,
			})

			ctx := cobraCmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: ./scenariominer.yaml)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
