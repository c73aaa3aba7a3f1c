package main

import (
	"fmt"

	"github.com/aretw0/theatre"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Prepare a charm repository for theatre",
	Long: `Creates the .theatre directory with virtual_fs, scenes and deltas, writes a
runner.yaml template and one spec.yaml per container declared in metadata.yaml.
Existing files are left untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd, args)
		if err != nil {
			return err
		}
		layout, err := theatre.Init(opts.RepoPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", layout.Dir)
		fmt.Fprintf(cmd.OutOrStdout(), "Edit %s to point at your charm's bridge command.\n", layout.RunnerConfig())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
