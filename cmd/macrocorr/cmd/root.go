// Package cmd holds the macrocorr CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/macrocorr/internal/config"
	"github.com/rewired-gh/macrocorr/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string

	// cfg is loaded once by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "macrocorr",
	Short: "Crypto, inflation and equity correlation analysis",
	Long: `macrocorr fetches daily prices and a macroeconomic index, then tests how
crypto assets move with inflation and whether their correlation with equities
changed between two periods.

Commands:
    inflation     monthly returns vs year-over-year inflation
    decoupling    rolling correlation with the benchmark, early vs late period
    all           both analyses
    history       archived run summaries
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel in-flight requests.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Warn("Interrupted")
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file with credentials (ignored if missing)")

	rootCmd.AddCommand(inflationCmd)
	rootCmd.AddCommand(decouplingCmd)
	rootCmd.AddCommand(allCmd)
	rootCmd.AddCommand(historyCmd)
}

func initConfig() error {
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}

	c, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(c.Logging.Level, c.Logging.Format)
	logger.Debug("Configuration loaded from %s", cfgFile)
	cfg = c
	return nil
}
