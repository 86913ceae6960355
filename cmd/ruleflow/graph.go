package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/ruleflow/internal/presentation/graph"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <file|rule-id>",
	Short: "Export the rule graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) or a Graphviz DOT description of a rule.
With --run, the steps visited by a recorded run (as returned by GET /runs/{id})
are highlighted on the Mermaid diagram.`,
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

		format, _ := cmd.Flags().GetString("format")
		runPath, _ := cmd.Flags().GetString("run")

		var output string
		switch format {
		case "mermaid":
			var overlay *graph.GraphOverlay
			if runPath != "" {
				run, err := readRun(runPath)
				if err != nil {
					return err
				}
				overlay = graph.OverlayFromRun(run)
			}
			output = graph.GenerateMermaid(rule.Pipeline, overlay)
		case "dot":
			if runPath != "" {
				return fmt.Errorf("--run is only supported with the mermaid format")
			}
			if output, err = graph.GenerateDOT(rule.Pipeline); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown format %q (want mermaid or dot)", format)
		}
		return writeOutput(cmd, []byte(output))
	},
}

func readRun(path string) (*domain.RunRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run record: %w", err)
	}
	var run domain.RunRecord
	if err := json.Unmarshal(b, &run); err != nil {
		return nil, fmt.Errorf("decode run record: %w", err)
	}
	return &run, nil
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid or dot")
	graphCmd.Flags().String("run", "", "Run record (JSON) to overlay on the diagram")
	graphCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
}
