package main

import (
	"fmt"

	"github.com/aretw0/theatre/internal/cli"
	"github.com/aretw0/theatre/internal/presentation/graph"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the scene as a Mermaid diagram",
	Long: `Outputs a Mermaid diagram (graph TD) of the scene: nodes, deltas and event
edges colored by event kind. With --trace, the trace of that node is evaluated
and highlighted.`,
	Args: cobra.NoArgs,
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

		var overlay *graph.GraphOverlay
		if target, _ := cmd.Flags().GetString("trace"); target != "" {
			steps, err := scene.EvaluateTrace(cmd.Context(), target)
			if err != nil {
				return err
			}
			overlay = &graph.GraphOverlay{Current: target}
			for _, step := range steps {
				overlay.Trace = append(overlay.Trace, step.ID)
			}
			for _, n := range scene.Nodes() {
				if n.Status == domain.StatusInvalid {
					overlay.Invalid = append(overlay.Invalid, n.ID)
				}
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(scene.Spec(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("trace", "", "Evaluate and highlight the trace of this node")
}
