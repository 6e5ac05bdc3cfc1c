package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/haullog/internal/db"
	"github.com/haullog/internal/warehouse"
	"github.com/spf13/cobra"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent warehouse population runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			runs, err := warehouse.NewRunLog(rt.db).List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func printRuns(w io.Writer, runs []db.PopulationRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no population runs recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRIGGER\tSTARTED\tSTATUS\tSCANNED\tPROCESSED\tSKIPPED\tFAILED\tERROR")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			run.ID,
			run.TriggeredBy,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Status,
			run.Scanned,
			run.Processed,
			run.Skipped,
			run.Failed,
			run.ErrorMessage,
		)
	}
	return tw.Flush()
}
