package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/homemade/hubpull/sync"
)

var (
	accountHubID        string
	accountRefreshToken string
	accountAccessToken  string
	accountSince        string
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage connected accounts",
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace an account",
	Args:  cobra.NoArgs,
	RunE:  runAccountsAdd,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts and their last pulled dates",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

func init() {
	accountsAddCmd.Flags().StringVar(&accountHubID, "hub-id", "", "portal id of the account")
	accountsAddCmd.Flags().StringVar(&accountRefreshToken, "refresh-token", "", "OAuth refresh token")
	accountsAddCmd.Flags().StringVar(&accountAccessToken, "access-token", "", "OAuth access token")
	accountsAddCmd.Flags().StringVar(&accountSince, "since", "", "RFC3339 time to pull every entity from, full pull when empty")
	accountsCmd.AddCommand(accountsAddCmd, accountsListCmd)
	rootCmd.AddCommand(accountsCmd)
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	if accountHubID == "" {
		return errors.New("--hub-id is required")
	}
	account := &sync.SyncAccount{
		HubID:        accountHubID,
		AccessToken:  accountAccessToken,
		RefreshToken: accountRefreshToken,
	}
	if accountSince != "" {
		since, err := time.Parse(time.RFC3339, accountSince)
		if err != nil {
			return err
		}
		for _, entity := range sync.SyncOrder {
			account.SetLastPulledDate(entity, since)
		}
	}

	store, err := sync.OpenSQLiteAccountStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveAccount(cmd.Context(), account)
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	store, err := sync.OpenSQLiteAccountStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	accounts, err := store.Accounts(cmd.Context())
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		cmd.Println("No accounts.")
		return nil
	}
	for _, a := range accounts {
		cmd.Printf("%s\n", a.HubID)
		for _, entity := range sync.SyncOrder {
			last := "never"
			if t := a.LastPulledDate(entity); t != nil {
				last = t.Format(time.RFC3339)
			}
			cmd.Printf("  %-10s %s\n", entity, last)
		}
	}
	return nil
}
