/*
Package theatre explores what a charm does across hypothetical sequences of
events.

A Scene is a trace tree: state nodes joined by event edges. Evaluating a
node replays the chain of events from its nearest root, each transition
running the charm against the previous node's output inside an isolated
copy of the container filesystems. Outputs are memoized until something
upstream changes (an edge label, a custom value, the mount configuration),
at which point the affected subtree is marked dirty and recomputed lazily on
the next read.

# Concept

  - Root nodes start from an empty state, optionally pinned to a custom value.
  - Every non-root node has exactly one incoming edge carrying an EventSpec.
  - Deltas are named pure transforms hanging off a node; an edge may start
    from a delta to branch on a tweaked copy of the node's state.
  - Failures are data: a node whose parent failed reports a
    ParentEvaluationFailed output pointing at the original failure.

# Usage

	scene, err := theatre.New("./my-charm")
	if err != nil {
		log.Fatal(err)
	}
	defer scene.Close()

	root, _ := scene.AddNode("fresh")
	installed, _ := scene.AddNode("installed")
	_, _ = scene.Connect(root.ID, installed.ID, domain.NewEventSpec("install"))

	out, err := scene.Evaluate(ctx, installed.ID)

The repository layout is created by Init (or `theatre init`):

	.theatre/
	  runner.yaml                         # how to run the charm
	  virtual_fs/<situation>/<container>/ # default mounts (spec.yaml)
	  scenes/                             # saved scenes
	  deltas/                             # delta scripts (<name>.go)
*/
package theatre
