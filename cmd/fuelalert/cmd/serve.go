package cmd

import (
	"fuelalert/lib/serviceutil"
	"fuelalert/lib/telemetry"
	"fuelalert/services/subscriptions"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the subscription signup and confirm/unsubscribe pages.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		tm, err := telemetry.SetupFromEnv(ctx, "fuelalert")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer tm.Shutdown(ctx)
		telemetry.InstrumentPerfStats(ctx)

		app, err := buildApp()
		if err != nil {
			serviceutil.Fatal("failed to build services", err)
		}

		router := subscriptions.NewRouter(app.subscriptions)
		go serviceutil.StartHttpServer(app.config.Http.Addr, router)

		<-ctx.Done()
	},
}
