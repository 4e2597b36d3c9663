package cmd

import (
	"errors"
	"os"
	"time"

	"fuelalert/lib/serviceutil"
	"fuelalert/services/runlog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [run id]",
	Short: "Lists recent runs from the runlog, or one run's per-city rows.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		app, err := buildApp()
		if err != nil {
			serviceutil.Fatal("failed to build services", err)
		}
		if app.config.Runlog.File == "" && app.config.Runlog.Url == "" {
			serviceutil.Fatal("runlog is not configured", errors.New("config has no runlog.file or runlog.url"))
		}

		database, err := app.config.Runlog.OpenDB()
		if err != nil {
			serviceutil.Fatal("failed to open runlog database", err)
		}
		defer database.Close()

		logsvc, err := runlog.NewService(database)
		if err != nil {
			serviceutil.Fatal("failed to init runlog", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)

		if len(args) == 1 {
			rows, err := logsvc.Cities(ctx, args[0])
			if err != nil {
				serviceutil.Fatal("failed to list run cities", err)
			}
			t.AppendHeader(table.Row{"City", "Previous", "Phase", "Sent", "Failed", "Note"})
			for _, row := range rows {
				t.AppendRow(table.Row{
					row.City, row.PreviousPhase, row.NextPhase,
					row.Notified, row.Failed, row.Note,
				})
			}
		} else {
			runs, err := logsvc.History(ctx, historyLimit)
			if err != nil {
				serviceutil.Fatal("failed to list runs", err)
			}
			t.AppendHeader(table.Row{"Run", "Started", "Sent", "Failed", "Skipped"})
			for _, run := range runs {
				t.AppendRow(table.Row{
					run.ID,
					time.Unix(run.StartedAt, 0).Format(time.ANSIC),
					run.Notified, run.Failed, run.Skipped,
				})
			}
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
