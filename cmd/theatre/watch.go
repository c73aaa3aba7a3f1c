package main

import (
	"github.com/aretw0/theatre/internal/cli"
	"github.com/aretw0/theatre/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <node>",
	Short: "Re-evaluate a node whenever the virtual filesystem changes",
	Long: `Evaluates the trace of a node and evaluates it again every time a spec.yaml
under .theatre/virtual_fs changes. Every root is marked dirty on change, so
the whole trace is recomputed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd, nil)
		if err != nil {
			return err
		}
		logger := cli.NewLogger(opts.Debug)

		scene, closeFn, err := cli.OpenScene(cmd.Context(), opts, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		p := printer(cmd)
		if !p.JSON {
			tui.PrintBanner(cmd.OutOrStdout())
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()
		return cli.RunWatch(sigCtx, scene, args[0], p, logger)
	},
}

func init() {
	addOutputFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}
