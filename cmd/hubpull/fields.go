package main

import (
	"github.com/spf13/cobra"

	"github.com/homemade/hubpull/sync"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Print the action properties emitted per entity as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := sync.LoadConfigFromEnvironment(sync.DefaultMappings)
		if err != nil {
			return err
		}
		csv, err := sync.GenerateFieldDocumentation(config).FormatCSV()
		if err != nil {
			return err
		}
		cmd.Print(csv)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}
