package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/stores"
)

func newReportCommand() *cobra.Command {
	var (
		maxNesting int
		statuses   []string
		statePath  string
	)

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Show the recorded actions of a past run",
		Long: `Show a run saved in the state database and its action records.

Records are listed in the order they were finalized. By default only
top-level actions are shown; raise --max-nesting to include nested ones and
use --status to narrow the list.`,
		Example: `  # Top-level actions of a run
  froyo report 7d9f0c1e-2b4a-4c39-8f1e-3a6c2d1b9e55

  # Everything that failed or never ran, nested included
  froyo report <run-id> --max-nesting 10 --status failed --status unprocessed

  # Machine-readable output
  froyo report <run-id> --json`,
		Args: cobra.ExactArgs(1),
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
			for _, s := range statuses {
				if _, err := actions.ParseStatus(s); err != nil {
					return err
				}
			}
			if len(statuses) == 0 {
				for _, s := range actions.AllStatuses() {
					statuses = append(statuses, string(s))
				}
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg.StatePath)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			records, err := store.FilterActionRecords(ctx, run.ID, stores.RecordFilter{
				MaxNesting: maxNesting,
				Statuses:   statuses,
			})
			if err != nil {
				return err
			}
			totals, err := store.CountByStatus(ctx, run.ID)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeReportJSON(cmd.OutOrStdout(), run, totals, records)
			}
			return writeReportTable(cmd.OutOrStdout(), run, totals, records)
		},
	}

	cmd.Flags().IntVar(&maxNesting, "max-nesting", 0, "deepest nesting level to include")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "statuses to include (default all)")
	cmd.Flags().StringVar(&statePath, "state", "", "SQLite database to read (defaults to the run config)")

	return cmd
}

func writeReportJSON(w io.Writer, run *stores.Run, totals map[string]int, records []stores.ActionRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Run     *stores.Run           `json:"run"`
		Totals  map[string]int        `json:"totals"`
		Records []stores.ActionRecord `json:"records"`
	}{run, totals, records})
}

func writeReportTable(w io.Writer, run *stores.Run, totals map[string]int, records []stores.ActionRecord) error {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Node:     %s\n", run.Node)
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if !run.EndedAt.IsZero() {
		fmt.Fprintf(w, "Duration: %s\n", run.EndedAt.Sub(run.StartedAt))
	}
	if run.Exception != nil {
		fmt.Fprintf(w, "Error:    %s\n", *run.Exception)
	}

	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprint(w, "Totals:  ")
	for _, k := range keys {
		fmt.Fprintf(w, " %s=%d", k, totals[k])
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tRESOURCE\tACTION\tSTATUS\tELAPSED\tDETAIL")
	for _, r := range records {
		elapsed := "-"
		if r.Elapsed != nil {
			elapsed = r.Elapsed.String()
		}
		detail := ""
		switch {
		case r.Exception != nil:
			detail = *r.Exception
		case r.Conditional != nil:
			detail = *r.Conditional
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.NestingLevel, r.Identity, r.Action, r.Status, elapsed, detail)
	}
	return tw.Flush()
}
