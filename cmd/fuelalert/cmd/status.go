package cmd

import (
	"os"
	"time"

	"fuelalert/lib/cities"
	"fuelalert/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the stored phase of every watched city.",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp()
		if err != nil {
			serviceutil.Fatal("failed to build services", err)
		}

		states, err := app.watcher.States(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read state store", err)
		}
		byCity, err := app.subscriptions.ByCity(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read subscriber store", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"City", "Phase", "Checked", "Subscribers"})

		for _, city := range cities.All {
			state, ok := states[city]
			if !ok {
				t.AppendRow(table.Row{cities.Display(city), "-", "never", len(byCity[city])})
				continue
			}
			t.AppendRow(table.Row{
				cities.Display(city),
				state.Phase.String(),
				state.CheckedAt.Format(time.ANSIC),
				len(byCity[city]),
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
