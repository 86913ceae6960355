package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/ruleflow/pkg/registry"
	"github.com/spf13/cobra"
)

var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List the built-in handlers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.NewWithBuiltins()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPROPS\tDESCRIPTION")
		for _, name := range reg.Names() {
			e, err := reg.Entry(name)
			if err != nil {
				return err
			}
			props := strings.Join(e.Props.Describe(), ", ")
			if props == "" {
				props = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, props, e.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(handlersCmd)
}
