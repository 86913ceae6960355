package main

import (
	"github.com/aretw0/ruleflow/pkg/compiler"
	"github.com/spf13/cobra"
)

var genCmd = &cobra.Command{
	Use:   "gen <file>",
	Short: "Generate Go source that builds a rule",
	Long: `Validates a description and writes a Go function that constructs the same pipeline
as the compiler does, so that a rule can be embedded in a binary without its file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := compiler.ValidateFile(args[0])
		if err != nil {
			return err
		}

		pkg, _ := cmd.Flags().GetString("package")
		fn, _ := cmd.Flags().GetString("func")
		src, err := compiler.Generate(def, compiler.GenerateOptions{Package: pkg, Func: fn})
		if err != nil {
			return err
		}
		return writeOutput(cmd, src)
	},
}

func init() {
	rootCmd.AddCommand(genCmd)

	genCmd.Flags().String("package", "rules", "Package clause of the generated file")
	genCmd.Flags().String("func", "", "Name of the generated function (default New<RuleName>)")
	genCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
}
