package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/ruleflow/internal/presentation/tui"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/observability"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var runCmd = &cobra.Command{
	Use:   "run <file|rule-id>",
	Short: "Execute a rule once and print the final context",
	Long: `Executes a rule and prints the final context as YAML.
The argument is a description file, or the id of a rule in --dir.
The initial context is read from --context (JSON), or from --context-file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		rule, err := loadRule(cmd, args[0], logger)
		if err != nil {
			return err
		}

		data, err := initialContext(cmd)
		if err != nil {
			return err
		}

		if trace, _ := cmd.Flags().GetBool("trace"); trace {
			var opts []tui.TraceOption
			if !isTerminal(cmd.ErrOrStderr()) {
				opts = append(opts, tui.Plain())
			}
			detach := tui.NewTracePrinter(cmd.ErrOrStderr(), opts...).Attach(rule.Pipeline)
			defer detach()
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			defer observability.Attach(rule.Pipeline, logger, "run").Detach()
		}

		result, err := rule.Pipeline.Execute(cmd.Context(), data)
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.ID(), err)
		}

		out, err := yaml.Marshal(map[string]any(result))
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func initialContext(cmd *cobra.Command) (domain.Context, error) {
	raw, _ := cmd.Flags().GetString("context")
	if path, _ := cmd.Flags().GetString("context-file"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read context file: %w", err)
		}
		raw = string(b)
	}

	data := domain.Context{}
	if raw == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("context must be a JSON object: %w", err)
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("context", "c", "", "Initial context as a JSON object")
	runCmd.Flags().String("context-file", "", "File holding the initial context as a JSON object")
	runCmd.Flags().Bool("trace", false, "Print every step event to stderr")
	runCmd.Flags().Bool("debug", false, "Log every pipeline and step event (shown with --log-level debug)")
	runCmd.MarkFlagsMutuallyExclusive("context", "context-file")
}
