package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lightbox/internal/ingest"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Register image files or directories with the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApplication(cmd, func(app *application) error {
				scanner := ingest.NewScanner(app.store, app.logger)
				summary, err := scanner.Scan(cmd.Context(), args...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, rec := range summary.Added {
					fmt.Fprintf(out, "Added #%d %s\n", rec.ID, rec.Path)
				}
				fmt.Fprintf(out, "%d added, %d already in library, %d skipped\n",
					len(summary.Added), summary.Existing, summary.Skipped)
				for _, scanErr := range summary.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", scanErr)
				}
				return nil
			})
		},
	}
}
