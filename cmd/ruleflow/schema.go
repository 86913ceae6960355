package main

import (
	"github.com/aretw0/ruleflow/pkg/schema"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of rule descriptions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := schema.Generate()
		if err != nil {
			return err
		}
		return writeOutput(cmd, append(doc, '\n'))
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
}
