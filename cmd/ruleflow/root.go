package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/ruleflow"
	"github.com/aretw0/ruleflow/internal/logging"
	"github.com/aretw0/ruleflow/pkg/catalog"
	"github.com/aretw0/ruleflow/pkg/compiler"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/aretw0/ruleflow/pkg/registry"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "ruleflow",
	Short: "Ruleflow executes rules described as graphs of steps",
	Long: `Ruleflow compiles YAML or JSON rule descriptions into step graphs and executes them
from the command line, over HTTP or as MCP tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the rule descriptions")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", logging.FormatText, "Log format: text or json")
}

func version() string {
	return strings.TrimSpace(ruleflow.Version)
}

// newLogger builds the logger selected by the global flags. Logs go to
// stderr so that stdout only carries command output.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	return logging.NewFormat(cmd.ErrOrStderr(), format, level)
}

// newCatalog loads every description in --dir.
func newCatalog(cmd *cobra.Command, logger *slog.Logger, opts ...catalog.Option) (*catalog.Catalog, error) {
	dir, _ := cmd.Flags().GetString("dir")
	opts = append([]catalog.Option{
		catalog.WithLogger(logger.With("component", "catalog")),
		catalog.WithPipelineOptions(pipeline.WithLogger(logger)),
	}, opts...)

	cat := catalog.New(dir, registry.NewWithBuiltins(registry.WithLogger(logger)), opts...)
	if err := cat.Load(); err != nil {
		return nil, err
	}
	return cat, nil
}

// loadRule resolves arg as a description file, or else as a rule id of
// the catalog in --dir.
func loadRule(cmd *cobra.Command, arg string, logger *slog.Logger) (*compiler.Rule, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		reg := registry.NewWithBuiltins(registry.WithLogger(logger))
		return compiler.LoadFile(arg, reg, pipeline.WithLogger(logger))
	}

	cat, err := newCatalog(cmd, logger)
	if err != nil {
		return nil, err
	}
	entry, err := cat.Entry(arg)
	if err != nil {
		return nil, err
	}
	return entry.Rule, nil
}

// writeOutput writes data to the file named by the --output flag, or to
// stdout when it is empty.
func writeOutput(cmd *cobra.Command, data []byte) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
