package cmd

import (
	"fmt"

	"fuelalert/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(unsubscribeCmd)
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <email> <city>",
	Short: "Adds a subscriber directly, skipping email confirmation.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp()
		if err != nil {
			serviceutil.Fatal("failed to build services", err)
		}
		err = app.subscriptions.Subscribe(cmd.Context(), args[0], args[1])
		if err != nil {
			serviceutil.Fatal("subscribe failed", err)
		}
		fmt.Printf("subscribed %s to %s\n", args[0], args[1])
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <email> [city]",
	Short: "Removes a subscriber from one city, or from all cities.",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp()
		if err != nil {
			serviceutil.Fatal("failed to build services", err)
		}
		if len(args) == 2 {
			err = app.subscriptions.Unsubscribe(cmd.Context(), args[0], args[1])
		} else {
			err = app.subscriptions.UnsubscribeAll(cmd.Context(), args[0])
		}
		if err != nil {
			serviceutil.Fatal("unsubscribe failed", err)
		}
		fmt.Printf("unsubscribed %s\n", args[0])
	},
}
