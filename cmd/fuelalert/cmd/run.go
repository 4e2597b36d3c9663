package cmd

import (
	"fmt"
	"os"
	"time"

	"fuelalert/lib/serviceutil"
	"fuelalert/lib/telemetry"
	"fuelalert/services/runlog"
	"fuelalert/services/watch"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetches the advisory page once, evaluates every city and sends any due alerts.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		tm, err := telemetry.SetupFromEnv(ctx, "fuelalert")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer tm.Shutdown(ctx)

		app, err := buildApp()
		if err != nil {
			serviceutil.Fatal("failed to build services", err)
		}

		report, err := app.watcher.Run(ctx)
		if err != nil {
			serviceutil.Fatal("run failed", err)
		}
		renderReport(report)

		if app.config.Runlog.File != "" || app.config.Runlog.Url != "" {
			database, err := app.config.Runlog.OpenDB()
			if err != nil {
				serviceutil.Fatal("failed to open runlog database", err)
			}
			defer database.Close()

			logsvc, err := runlog.NewService(database)
			if err != nil {
				serviceutil.Fatal("failed to init runlog", err)
			}
			err = logsvc.Record(ctx, report)
			if err != nil {
				serviceutil.Fatal("failed to record run", err)
			}
		}
	},
}

func renderReport(report watch.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"City", "Previous", "Phase", "Sent", "Note"})

	for _, city := range report.Cities {
		note := city.Skipped
		if note == "" {
			note = city.Warning
		}
		if note == "" && city.Transitioned() {
			note = "alert fired"
		}
		for _, failure := range city.Failures {
			note += fmt.Sprintf(" [%s: %s]", failure.Email, failure.Reason)
		}
		previous := city.Previous.String()
		next := city.Phase.String()
		if city.Skipped != "" {
			previous, next = "-", "-"
		}
		t.AppendRow(table.Row{city.City, previous, next, city.Notified, note})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()

	fmt.Printf(
		"run %s: %d notified, %d failed, %d skipped in %s\n",
		report.ID,
		report.NotifiedTotal(),
		report.FailureTotal(),
		report.SkippedTotal(),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
}
