package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/ruleflow/internal/validator"
	"github.com/aretw0/ruleflow/pkg/catalog"
	"github.com/aretw0/ruleflow/pkg/compiler"
	"github.com/aretw0/ruleflow/pkg/registry"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate rule descriptions",
	Long: `Checks each description against the schema, compiles it and lints the resulting
graph for missing boundaries, dangling connections and unreachable steps.
Without arguments every description in --dir is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}

		files := args
		if len(files) == 0 {
			dir, _ := cmd.Flags().GetString("dir")
			if files, err = catalog.New(dir, nil).Files(); err != nil {
				return err
			}
		}
		if len(files) == 0 {
			return errors.New("no rule descriptions found")
		}

		reg := registry.NewWithBuiltins(registry.WithLogger(logger))
		failed := 0
		for _, path := range files {
			if !validateFile(cmd.OutOrStdout(), path, reg) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d descriptions are invalid", failed, len(files))
		}
		return nil
	},
}

func validateFile(w io.Writer, path string, reg *registry.Registry) bool {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(w, "✗ %s\n  %v\n", path, err)
		return false
	}
	rule, err := compiler.LoadFile(path, reg)
	if err == nil {
		err = validator.Validate(rule.Pipeline)
	}
	if err != nil {
		fmt.Fprintf(w, "✗ %s\n%s", path, indent(validator.Report(err)))
		return false
	}
	fmt.Fprintf(w, "✓ %s (%s)\n", path, rule.ID())
	return true
}

func indent(report string) string {
	lines := strings.Split(strings.TrimRight(report, "\n"), "\n")
	return "  " + strings.Join(lines, "\n  ") + "\n"
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
