package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/theatre"
)

// RunWatch evaluates the trace of nodeID and evaluates it again every time
// the repository's mount configuration changes, until ctx is done.
func RunWatch(ctx context.Context, scene *theatre.Scene, nodeID string, p *Printer, logger *slog.Logger) error {
	watchCh, err := scene.Watch(ctx)
	if err != nil {
		return err
	}

	show := func() error {
		steps, err := scene.EvaluateTrace(ctx, nodeID)
		if err != nil {
			return fmt.Errorf("failed to evaluate %s: %w", nodeID, err)
		}
		return p.Trace(steps)
	}

	logger.Info("Starting Watcher", "repo", scene.Repo(), "node", nodeID)
	if err := show(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watchCh:
			if !ok {
				return nil
			}
			logger.Info("Change detected, reloading mounts")
			if !p.JSON {
				printSystemMessage(p.W, "Change detected, re-evaluating '%s'...", nodeID)
			}
			if err := scene.Reload(); err != nil {
				logger.Error("Reload failed", "err", err)
				continue
			}
			if err := show(); err != nil {
				return err
			}
		}
	}
}
