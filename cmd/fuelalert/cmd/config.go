package cmd

import (
	"log/slog"

	"fuelalert/lib/configuration"
	configlibsql "fuelalert/lib/configuration/libsql"
	"fuelalert/lib/scrapers/accc"
	"fuelalert/services/notifier"

	"github.com/mazen160/go-random"
)

type DataConfig struct {
	StateFile       string `json:"state_file"`
	SubscribersFile string `json:"subscribers_file"`
}

type NotifyConfig struct {
	// CommitWithoutDelivery marks fired transitions as handled even
	// when the notifier runs in dry mode.
	CommitWithoutDelivery bool `json:"commit_without_delivery"`
}

type HttpConfig struct {
	Addr string `json:"addr"`
}

type Config struct {
	Source accc.ClientOptions  `json:"source"`
	Email  notifier.SmtpConfig `json:"email"`
	// SiteUrl is the public base url baked into confirm/unsubscribe
	// links, e.g. "https://fuelalert.example.com".
	SiteUrl string `json:"site_url"`
	// SecretKey signs the emailed action tokens. Leaving it empty
	// generates an ephemeral one, which invalidates previously sent
	// links on every restart.
	SecretKey string              `json:"secret_key"`
	Data      DataConfig          `json:"data"`
	Runlog    configlibsql.Struct `json:"runlog"`
	Notify    NotifyConfig        `json:"notify"`
	Http      HttpConfig          `json:"http"`
}

func readConfig(path string) (Config, error) {
	config, err := configuration.ReadConfig[Config](path)
	if err != nil {
		return Config{}, err
	}
	if config.Data.StateFile == "" {
		config.Data.StateFile = "data/state.json"
	}
	if config.Data.SubscribersFile == "" {
		config.Data.SubscribersFile = "data/subscribers.json"
	}
	if config.Http.Addr == "" {
		config.Http.Addr = ":8120"
	}
	if config.SecretKey == "" {
		secret, err := random.String(32)
		if err != nil {
			return Config{}, err
		}
		config.SecretKey = secret
		slog.Warn("no secret_key configured, generated an ephemeral one; emailed links will break on restart")
	}
	return config, nil
}
