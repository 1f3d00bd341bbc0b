package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lightbox/internal/photo"
)

func newPhotosCommand(ctx *commandContext) *cobra.Command {
	photosCmd := &cobra.Command{
		Use:   "photos",
		Short: "Inspect photos in the library",
	}
	photosCmd.AddCommand(newPhotosListCommand(ctx))
	photosCmd.AddCommand(newPhotosShowCommand(ctx))
	return photosCmd
}

func newPhotosListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List photos, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]photo.Status, 0, len(statusFlags))
			for _, value := range statusFlags {
				status, ok := photo.ParseStatus(strings.ToLower(strings.TrimSpace(value)))
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, status)
			}
			return ctx.withApplication(cmd, func(app *application) error {
				photos, err := app.store.ListPhotos(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(photos) == 0 {
					fmt.Fprintln(out, "No photos")
					return nil
				}
				color := shouldColorize(out)
				rows := make([][]string, 0, len(photos))
				for _, rec := range photos {
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						rec.Name,
						colorize(string(rec.Status), statusColor(rec.Status), color),
						fmt.Sprintf("%d", rec.Flags.Count()),
						formatSize(rec.SizeBytes),
						formatWhen(&rec.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{right("ID"), left("Name"), left("Status"), right("Results"), right("Size"), left("Added")},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Only show photos in these statuses")
	return cmd
}

func newPhotosShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show everything recorded for a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApplication(cmd, func(app *application) error {
				rec, err := app.store.GetPhoto(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return errors.New("photo not found")
				}
				renderPhoto(cmd, rec)
				return nil
			})
		},
	}
}

func renderPhoto(cmd *cobra.Command, rec *photo.Record) {
	out := cmd.OutOrStdout()
	color := shouldColorize(out)

	printKV(out, "ID", strconv.FormatInt(rec.ID, 10))
	printKV(out, "Path", rec.Path)
	printKV(out, "Status", colorize(string(rec.Status), statusColor(rec.Status), color))
	if rec.ErrorMessage != "" {
		printKV(out, "Error", rec.ErrorMessage)
	}
	printKV(out, "Results", photo.FormatFlags(rec.Flags))
	if rec.Width > 0 {
		printKV(out, "Dimensions", fmt.Sprintf("%dx%d %s", rec.Width, rec.Height, rec.Format))
	}
	printKV(out, "Size", formatSize(rec.SizeBytes))
	if camera := strings.TrimSpace(rec.CameraMake + " " + rec.CameraModel); camera != "" {
		printKV(out, "Camera", camera)
	}
	if rec.TakenAt != nil {
		printKV(out, "Taken", rec.TakenAt.Format("2006-01-02 15:04:05"))
	}
	if rec.DuplicateOf != 0 {
		printKV(out, "Duplicate of", fmt.Sprintf("#%d", rec.DuplicateOf))
	}
	if rec.DominantColor != "" {
		printKV(out, "Colors", fmt.Sprintf("%s dominant, %s accent, black and white: %s",
			rec.DominantColor, dash(rec.AccentColor), yesNo(rec.IsBlackWhite)))
	}
	if rec.Caption != "" {
		printKV(out, "Caption", rec.Caption)
	}
	if len(rec.Tags) > 0 {
		printKV(out, "Tags", tagNames(rec.Tags))
	}
	if len(rec.Categories) > 0 {
		printKV(out, "Categories", tagNames(rec.Categories))
	}
	if len(rec.Objects) > 0 {
		names := make([]string, 0, len(rec.Objects))
		for _, obj := range rec.Objects {
			names = append(names, obj.Name)
		}
		printKV(out, "Objects", strings.Join(names, ", "))
	}
	if rec.Flags.Has(photo.FlagFace) {
		printKV(out, "Faces", strconv.Itoa(len(rec.Faces)))
	}
	if rec.Flags.Has(photo.FlagAdult) {
		printKV(out, "Adult", fmt.Sprintf("%s (%.2f), racy %s (%.2f)",
			yesNo(rec.IsAdult), rec.AdultScore, yesNo(rec.IsRacy), rec.RacyScore))
	}
	printKV(out, "Thumbnail", dash(rec.ThumbnailKey))
	printKV(out, "Enriched", formatWhen(rec.EnrichedAt))
}
