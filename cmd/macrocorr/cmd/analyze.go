package cmd

import (
	"github.com/spf13/cobra"
)

var inflationCmd = &cobra.Command{
	Use:   "inflation",
	Short: "Correlate monthly asset returns with year-over-year inflation",
	Long: `Fetches the configured price index and daily closes, computes year-over-year
inflation and monthly returns, and tests each asset's correlation with inflation.
Also tests how the rolling correlation of the configured pair moves with inflation.`,
	Args:    cobra.NoArgs,
	PreRunE: requireFRED,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()

		rep, err := a.runInflation(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.publishInflation(cmd.Context(), rep); err != nil {
			return err
		}
		a.export(rep, nil)
		return nil
	},
}

var decouplingCmd = &cobra.Command{
	Use:   "decoupling",
	Short: "Test whether crypto/equity correlation changed between two periods",
	Long: `Computes each asset's rolling correlation of daily returns with the benchmark
and runs a Welch t-test between the early and the late period.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()

		rep, err := a.runDecoupling(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.publishDecoupling(cmd.Context(), rep); err != nil {
			return err
		}
		a.export(nil, rep)
		return nil
	},
}

var allCmd = &cobra.Command{
	Use:     "all",
	Short:   "Run both analyses",
	Long:    `Runs the inflation and the decoupling analysis. Nothing is printed or written unless both succeed.`,
	Args:    cobra.NoArgs,
	PreRunE: requireFRED,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg)
		defer a.close()

		inflation, err := a.runInflation(cmd.Context())
		if err != nil {
			return err
		}
		decoupling, err := a.runDecoupling(cmd.Context())
		if err != nil {
			return err
		}

		if err := a.publishInflation(cmd.Context(), inflation); err != nil {
			return err
		}
		if err := a.publishDecoupling(cmd.Context(), decoupling); err != nil {
			return err
		}
		a.export(inflation, decoupling)
		return nil
	},
}

// requireFRED guards the commands that query the macro index provider.
func requireFRED(cmd *cobra.Command, args []string) error {
	return cfg.RequireFRED()
}
