package main

import (
	"fmt"

	"github.com/aretw0/ruleflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <file|rule-id>",
	Short: "Render a summary of a rule",
	Long:  `Renders the steps, connections and graph of a rule as markdown. Use --raw to print the markdown source.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		rule, err := loadRule(cmd, args[0], logger)
		if err != nil {
			return err
		}

		markdown := tui.Describe(rule)
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			_, err := fmt.Fprint(cmd.OutOrStdout(), markdown)
			return err
		}

		render, err := tui.NewRenderer(isTerminal(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
		out, err := render(markdown)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)

	describeCmd.Flags().Bool("raw", false, "Print the markdown source")
}
