package main

import (
	"github.com/aretw0/theatre/internal/cli"
	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval <node>",
	Short: "Evaluate a node of a stored scene",
	Long: `Evaluates a node (or a delta given as <node>#<delta>) of the scene selected
with --scene, recomputing whatever upstream is stale, and prints its output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd, nil)
		if err != nil {
			return err
		}
		scene, closeFn, err := cli.OpenScene(cmd.Context(), opts, cli.NewLogger(opts.Debug))
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := scene.Evaluate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printer(cmd).Output(args[0], out)
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace <node>",
	Short: "Evaluate and print the trace from the root down to a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd, nil)
		if err != nil {
			return err
		}
		scene, closeFn, err := cli.OpenScene(cmd.Context(), opts, cli.NewLogger(opts.Debug))
		if err != nil {
			return err
		}
		defer closeFn()

		steps, err := scene.EvaluateTrace(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printer(cmd).Trace(steps)
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <node>",
	Short: "Show what a node changed relative to its parent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd, nil)
		if err != nil {
			return err
		}
		scene, closeFn, err := cli.OpenScene(cmd.Context(), opts, cli.NewLogger(opts.Debug))
		if err != nil {
			return err
		}
		defer closeFn()

		diff, err := scene.Diff(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printer(cmd).Diff(args[0], diff)
	},
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the nodes of a stored scene",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd, nil)
		if err != nil {
			return err
		}
		scene, closeFn, err := cli.OpenScene(cmd.Context(), opts, cli.NewLogger(opts.Debug))
		if err != nil {
			return err
		}
		defer closeFn()
		return printer(cmd).Nodes(scene.Nodes())
	},
}

var scenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "List the stored scenes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd, args)
		if err != nil {
			return err
		}
		sessions, closeFn, err := cli.OpenSessions(opts, cli.NewLogger(opts.Debug))
		if err != nil {
			return err
		}
		defer closeFn()

		names, err := sessions.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range names {
			cmd.Println(name)
		}
		return nil
	},
}

func printer(cmd *cobra.Command) *cli.Printer {
	jsonMode, _ := cmd.Flags().GetBool("json")
	raw, _ := cmd.Flags().GetBool("raw")
	return cli.NewPrinter(cmd.OutOrStdout(), jsonMode, raw)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Print JSON instead of rendered markdown")
	cmd.Flags().Bool("raw", false, "Print markdown without terminal styling")
}

func init() {
	for _, c := range []*cobra.Command{evalCmd, traceCmd, diffCmd, nodesCmd} {
		addOutputFlags(c)
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(scenesCmd)
}
