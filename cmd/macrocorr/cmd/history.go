package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rewired-gh/macrocorr/internal/storage"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Storage.Enabled {
			return errors.New("run archive is disabled (set storage.enabled)")
		}
		store, err := storage.New(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		return printHistory(os.Stdout, runs)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show (0 for all)")
}

func printHistory(w io.Writer, runs []storage.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No archived runs.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s..%s\t%s\n",
			run.GeneratedAt.Local().Format(time.DateTime), run.Kind, run.From, run.To, run.ID)
		for _, r := range run.Results {
			mark := ""
			if r.Significant {
				mark = "*"
			}
			fmt.Fprintf(tw, "  %s\t%.3f\tp=%.4f\t%s\n", r.Label, r.Statistic, r.PValue, mark)
		}
	}
	return tw.Flush()
}
