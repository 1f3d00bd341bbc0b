package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"lightbox/internal/enrich"
	"lightbox/internal/photo"
)

func newUnitsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List registered enrichment units",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApplication(cmd, func(app *application) error {
				active := app.pipeline.ActiveUnits()
				rows := make([][]string, 0, len(active))
				for _, desc := range app.registry.Descriptors() {
					rows = append(rows, []string{
						string(desc.ID),
						dash(enrich.JoinIdentities(desc.Deps)),
						photo.FormatFlags(desc.Kind),
						yesNo(slices.Contains(active, desc.ID)),
						yesNo(slices.Contains(app.cfg.Enrichment.DataProviders, string(desc.ID))),
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					leftColumns("Unit", "Depends on", "Result", "Active", "Data provider"),
					rows,
				))
				if !app.cfg.VisionEnabled() {
					fmt.Fprintln(out, "Vision units are disabled; set vision.api_key or GEMINI_API_KEY to enable them")
				}
				return nil
			})
		},
	}
}
