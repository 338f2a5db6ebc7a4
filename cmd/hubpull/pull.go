package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/homemade/hubpull/sync"
)

var (
	pullSinkURL string
	pullSinkKey string
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull every account once",
	Long: `Pulls companies, contacts and meetings modified since the last pull of
every account in the database and sends them to the sink as actions.
Actions are logged when no sink URL is configured.`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

func init() {
	pullCmd.Flags().StringVar(&pullSinkURL, "sink-url", "", "endpoint actions are posted to")
	pullCmd.Flags().StringVar(&pullSinkKey, "sink-key", "", "bearer token for the sink endpoint")
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) error {
	config, err := sync.LoadConfigFromEnvironment(sync.DefaultMappings)
	if err != nil {
		return err
	}
	if pullSinkURL != "" {
		config.API.Endpoints.Sink = pullSinkURL
	}
	if pullSinkKey != "" {
		config.API.Keys.Sink = pullSinkKey
	}

	store, err := sync.OpenSQLiteAccountStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sc := sync.NewSyncContext(config)
	refresher := sync.OAuthTokenRefresher{
		ClientID:     config.API.Keys.ClientID,
		ClientSecret: config.API.Keys.ClientSecret,
		TokenURL:     config.API.Endpoints.Token,
	}
	puller := sync.NewPuller(sc, sync.NewHubSpotFetcher(sc), refresher, store, sync.NewSink(sc))

	statuses, err := puller.Pull(cmd.Context())
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}
