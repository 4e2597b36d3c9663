package cmd

import (
	"context"
	"fmt"
	"os"

	"fuelalert/lib/filestore"
	"fuelalert/lib/scrapers/accc"
	"fuelalert/lib/telemetry"
	"fuelalert/services/notifier"
	"fuelalert/services/subscriptions"
	"fuelalert/services/watch"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fuelalert",
	Short: "fuelalert watches petrol price cycle advisories and emails subscribers when a city hits the bottom of its cycle.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "Path to the config file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging.")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// subscriptionsDirectory defers the subscriber lookup so the watch and
// subscription services can reference each other after construction.
type subscriptionsDirectory struct {
	s *subscriptions.Service
}

func (d subscriptionsDirectory) ByCity(ctx context.Context) (map[string][]string, error) {
	return d.s.ByCity(ctx)
}

// app is the wired service graph every subcommand operates on.
type app struct {
	config        Config
	states        *filestore.Store[watch.StateDoc]
	subscribers   *filestore.Store[subscriptions.Doc]
	mailer        notifier.Service
	watcher       watch.Service
	subscriptions subscriptions.Service
}

func buildApp() (app, error) {
	config, err := readConfig(configPath)
	if err != nil {
		return app{}, err
	}

	states := filestore.New[watch.StateDoc](config.Data.StateFile)
	subscribers := filestore.New[subscriptions.Doc](config.Data.SubscribersFile)

	mailer := notifier.NewFromConfig(config.Email, notifier.Options{
		SiteUrl: config.SiteUrl,
		Secret:  config.SecretKey,
	})
	source := accc.NewClient(config.Source)

	subs := subscriptions.Service{}
	watcher := watch.NewService(source, mailer, states, subscriptionsDirectory{&subs}, watch.Options{
		CommitWithoutDelivery: config.Notify.CommitWithoutDelivery,
	})
	subs = subscriptions.NewService(subscribers, mailer, watcher, config.SecretKey)

	return app{
		config:        config,
		states:        states,
		subscribers:   subscribers,
		mailer:        mailer,
		watcher:       watcher,
		subscriptions: subs,
	}, nil
}
