package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"lightbox/internal/enrich"
	"lightbox/internal/pipeline"
)

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var (
		units           []string
		force           bool
		allPending      bool
		limit           int
		concurrency     int
		continueOnError bool
	)

	cmd := &cobra.Command{
		Use:   "enrich [id...]",
		Short: "Run enrichment units against photos",
		Long: `Run the enrichment units a photo is still missing.

With --units only the named units (and whatever they depend on) run. --force
re-runs the selection and its whole dependency closure; a forced run is only
saved when every unit succeeds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if allPending && len(args) > 0 {
				return errors.New("pass photo ids or --all-pending, not both")
			}
			req := pipeline.Request{
				Units:           units,
				Force:           force,
				Concurrency:     concurrency,
				ContinueOnError: continueOnError,
			}
			return ctx.withApplication(cmd, func(app *application) error {
				out := cmd.OutOrStdout()
				if allPending {
					summary, err := app.pipeline.EnrichPending(cmd.Context(), limit, req)
					if err != nil {
						return err
					}
					renderBatch(out, summary)
					return batchError(summary)
				}

				ids, err := parseIDs(args)
				if err != nil {
					return err
				}
				if len(ids) == 1 {
					result, err := app.pipeline.Enrich(cmd.Context(), ids[0], req)
					if err != nil {
						return err
					}
					renderResult(out, ids[0], result)
					return resultError(result)
				}
				summary := app.pipeline.EnrichBatch(cmd.Context(), ids, req)
				renderBatch(out, summary)
				return batchError(summary)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&units, "units", "u", nil, "Units to run (comma separated)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-run units even when their results exist")
	cmd.Flags().BoolVar(&allPending, "all-pending", false, "Enrich every pending photo")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum photos for --all-pending")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Units in flight per photo (default from config)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep running independent units after a failure")
	return cmd
}

func renderResult(out io.Writer, id int64, result *pipeline.Result) {
	color := shouldColorize(out)
	if result.UpToDate() {
		fmt.Fprintf(out, "#%d %s: up to date\n", id, result.Photo.Name)
		return
	}
	report := result.Report
	fmt.Fprintf(out, "#%d %s: %s in %s -> %s\n",
		id,
		result.Photo.Name,
		colorize(string(report.Outcome), outcomeColor(report.Outcome), color),
		formatDuration(report.Duration()),
		colorize(string(result.Photo.Status), statusColor(result.Photo.Status), color),
	)

	rows := make([][]string, 0, len(result.Selected))
	for _, unitID := range result.Selected {
		detail := ""
		if err, ok := report.Failure(unitID); ok {
			detail = err.Error()
		} else if skip, ok := report.Skip(unitID); ok {
			detail = skip.Reason
			if skip.BlockedBy != "" {
				detail = fmt.Sprintf("%s (blocked by %s)", skip.Reason, skip.BlockedBy)
			}
		} else if unitID == report.HaltedBy {
			detail = report.HaltReason
		}
		rows = append(rows, []string{
			string(unitID),
			report.State(unitID).String(),
			formatDuration(report.Durations[unitID]),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{left("Unit"), left("State"), right("Time"), left("Detail")},
		rows,
	))
	if result.RolledBack {
		fmt.Fprintln(out, "Forced run did not fully succeed; previous results were kept")
	}
}

func renderBatch(out io.Writer, summary pipeline.BatchSummary) {
	fmt.Fprintf(out, "%d enriched, %d failed, %d up to date in %s\n",
		summary.Processed, summary.Failed, summary.UpToDate, formatDuration(summary.Duration))
	for _, id := range slices.Sorted(maps.Keys(summary.Results)) {
		result := summary.Results[id]
		if result.Report != nil && (result.Err != nil || result.RolledBack) {
			fmt.Fprintf(out, "  #%d: %s\n", id, result.Report.Summary())
		}
	}
	for _, id := range slices.Sorted(maps.Keys(summary.Errors)) {
		fmt.Fprintf(out, "  #%d: %v\n", id, summary.Errors[id])
	}
}

func resultError(result *pipeline.Result) error {
	if result.UpToDate() {
		return nil
	}
	if result.RolledBack {
		return errors.New("forced enrichment rolled back")
	}
	switch result.Report.Outcome {
	case enrich.OutcomeSucceeded, enrich.OutcomeHalted:
		return nil
	default:
		return fmt.Errorf("enrichment %s", result.Report.Outcome)
	}
}

func batchError(summary pipeline.BatchSummary) error {
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d photos failed", summary.Failed, summary.Total())
	}
	return nil
}
