package main

import (
	"fmt"

	"github.com/aretw0/theatre"
	"github.com/aretw0/theatre/internal/cli"
	"github.com/aretw0/theatre/internal/validator"
	"github.com/aretw0/theatre/pkg/adapters/script"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <scene>...",
	Short: "Check that stored scenes can be restored",
	Long: `Loads each scene from the store and checks node and edge ids, edge
endpoints, single incoming edges, cycles and that every delta script compiles.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd, nil)
		if err != nil {
			return err
		}
		sessions, closeFn, err := cli.OpenSessions(opts, cli.NewLogger(opts.Debug))
		if err != nil {
			return err
		}
		defer closeFn()

		deltas := script.NewLibrary(theatre.NewLayout(opts.RepoPath).Deltas())
		failed := 0
		for _, name := range args {
			spec, err := sessions.Load(cmd.Context(), name)
			if err == nil {
				err = validator.ValidateScene(spec, deltas.Resolve)
			}
			if err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", name, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%d nodes, %d edges)\n", name, len(spec.Nodes), len(spec.Edges))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenes are invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
