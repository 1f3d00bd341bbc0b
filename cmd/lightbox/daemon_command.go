package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lightbox/internal/daemon"
	"lightbox/internal/ingest"
	"lightbox/internal/logging"
	"lightbox/internal/notifications"
	"lightbox/internal/preflight"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the background worker in the foreground",
		Long: `Scan the watch directories and enrich pending photos until interrupted.

Only one daemon can run per data directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			app, err := ctx.application(cmd.Context(), logger)
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, app.store, app.pipeline, ingest.NewScanner(app.store, logger), logger,
				daemon.WithNotifier(app.notifier),
				daemon.WithPreflightTargets(preflight.Targets{Database: app.store, Blobs: app.blobs}),
			)
			if err != nil {
				return err
			}

			if once {
				stats, err := d.RunCycle(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d ingested, %d enriched, %d failed\n",
					stats.Ingested, stats.Batch.Processed, stats.Batch.Failed)
				return nil
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := d.Start(runCtx); err != nil {
				return err
			}
			<-runCtx.Done()
			d.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run a single cycle and exit")
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApplication(cmd, func(app *application) error {
				results := preflight.RunAll(cmd.Context(), app.cfg, preflight.Targets{
					Database: app.store,
					Blobs:    app.blobs,
				})
				out := cmd.OutOrStdout()
				color := shouldColorize(out)
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := colorize("ok", ansiGreen, color)
					if !r.Passed {
						status = colorize("fail", ansiRed, color)
					}
					rows = append(rows, []string{r.Name, status, r.Detail})
				}
				fmt.Fprintln(out, renderTable(leftColumns("Check", "Status", "Detail"), rows))
				if failed := preflight.Failed(results); len(failed) > 0 {
					return fmt.Errorf("%d checks failed", len(failed))
				}
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Notifications.NtfyTopic == "" {
				fmt.Fprintln(out, "ntfy topic not configured")
				return nil
			}
			if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
