package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/haullog/internal/warehouse"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type populateOptions struct {
	batchSize int
}

func newPopulateCmd(opts *rootOptions) *cobra.Command {
	popts := &populateOptions{}

	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Load every operational record into the warehouse",
		Long: `populate resolves dimensions and loads one fact per operational record.
Records that already have a fact are skipped, so the command can be rerun safely.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			batchSize := rt.cfg.Warehouse.BatchSize
			if flagChanged(cmd.Flags(), "batch-size") {
				batchSize = popts.batchSize
			}
			if batchSize < 0 {
				return fmt.Errorf("batch size must not be negative")
			}

			populator := warehouse.NewPopulator(rt.db, warehouse.Options{
				BatchSize: batchSize,
				Logger:    rt.logger,
			})
			summary, runErr := populator.PopulateAll(cmd.Context(), warehouse.TriggerCLI)
			printSummary(cmd.OutOrStdout(), summary)
			return runErr
		},
	}
	cmd.Flags().IntVar(&popts.batchSize, "batch-size", 0, "records per transaction, 0 for a single transaction")
	return cmd
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

func printSummary(w io.Writer, s warehouse.Summary) {
	fmt.Fprintf(w, "run:        %s\n", s.RunID)
	fmt.Fprintf(w, "scanned:    %d\n", s.Scanned)
	fmt.Fprintf(w, "processed:  %d\n", s.Processed)
	fmt.Fprintf(w, "skipped:    %d\n", s.Skipped)
	fmt.Fprintf(w, "failed:     %d\n", s.Failed)

	names := make([]string, 0, len(s.DimensionsCreated))
	for name := range s.DimensionsCreated {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "new %-12s %d\n", name+":", s.DimensionsCreated[name])
	}
	fmt.Fprintf(w, "duration:   %s\n", s.Duration)
}
