package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

//go:embed templates/*.yaml
var templates embed.FS

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write example rule descriptions into --dir",
	Long:  `Creates --dir when missing and writes example rules into it. Existing files are kept unless --force is set.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		force, _ := cmd.Flags().GetBool("force")

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		names, err := fs.Glob(templates, "templates/*.yaml")
		if err != nil {
			return err
		}

		for _, name := range names {
			target := filepath.Join(dir, filepath.Base(name))
			if _, err := os.Stat(target); err == nil && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "skip   %s (exists)\n", target)
				continue
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			content, err := templates.ReadFile(name)
			if err != nil {
				return err
			}
			if err := os.WriteFile(target, content, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "create %s\n", target)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite existing files")
}
