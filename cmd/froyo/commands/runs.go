package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var (
		limit     int
		offset    int
		statePath string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List saved runs, newest first",
		Example: `  # The ten most recent runs
  froyo runs --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("state") {
				cfg.StatePath = statePath
			}
			if cfg.StatePath == "" {
				return fmt.Errorf("no state database configured")
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg.StatePath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(ctx, limit, offset)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tNODE\tSTATUS\tSTARTED\tRESOURCES")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
					r.ID, r.Node, r.Status, r.StartedAt.Format(time.RFC3339), r.TotalResources)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")
	cmd.Flags().StringVar(&statePath, "state", "", "SQLite database to read (defaults to the run config)")

	return cmd
}
