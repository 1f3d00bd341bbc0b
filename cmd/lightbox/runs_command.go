package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs <photo-id>",
		Short: "Show the enrichment run history of a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApplication(cmd, func(app *application) error {
				runs, err := app.store.ListRuns(cmd.Context(), ids[0], limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				color := shouldColorize(out)
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					runID := run.RunID
					if len(runID) > 8 {
						runID = runID[:8]
					}
					rows = append(rows, []string{
						runID,
						run.StartedAt.Local().Format("2006-01-02 15:04:05"),
						colorize(string(run.Outcome), outcomeColor(run.Outcome), color),
						yesNo(run.Forced),
						dash(strings.Join(run.Completed, ",")),
						dash(strings.Join(run.Failed, ",")),
						dash(strings.Join(run.Skipped, ",")),
						formatDuration(run.Duration()),
					})
				}
				fmt.Fprintln(out, renderTable(
					append(leftColumns("Run", "Started", "Outcome", "Forced", "Completed", "Failed", "Skipped"), right("Time")),
					rows,
				))
				for _, run := range runs {
					if run.Error != "" {
						fmt.Fprintf(out, "%s: %s\n", run.RunID, run.Error)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}
