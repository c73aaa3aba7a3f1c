// Package process runs the charm transition function out of process through
// a bridge command speaking JSON over stdin/stdout.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/ports"
)

const (
	kindEvent  = "event"
	kindAction = "action"
)

type request struct {
	Kind   string            `json:"kind"`
	State  *domain.State     `json:"state"`
	Event  *domain.Event     `json:"event,omitempty"`
	Action *domain.Action    `json:"action,omitempty"`
	Env    map[string]string `json:"env,omitempty"`
}

type response struct {
	State   *domain.State    `json:"state"`
	Results map[string]any   `json:"results,omitempty"`
	Logs    []domain.LogLine `json:"logs,omitempty"`
	Failure string           `json:"failure,omitempty"`
}

// Runner is a ports.ContextFactory spawning the bridge once per call.
type Runner struct {
	cfg Config
}

var _ ports.ContextFactory = (*Runner)(nil)

// NewRunner creates a runner for the given bridge configuration.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// NewContext implements ports.ContextFactory.
func (r *Runner) NewContext(sideChannel io.Writer) (ports.ExecutionContext, error) {
	if r.cfg.Command == "" {
		return nil, fmt.Errorf("process runner: no command configured")
	}
	if sideChannel == nil {
		sideChannel = io.Discard
	}
	return &processContext{cfg: r.cfg, side: sideChannel}, nil
}

type processContext struct {
	cfg  Config
	side io.Writer
	logs []domain.LogLine
}

func (p *processContext) Run(ctx context.Context, state *domain.State, event domain.Event, env map[string]string) (*domain.State, error) {
	res, err := p.call(ctx, request{Kind: kindEvent, State: state, Event: &event, Env: env})
	if err != nil {
		return nil, err
	}
	if res.Failure != "" {
		return nil, fmt.Errorf("charm raised: %s", res.Failure)
	}
	return res.State, nil
}

func (p *processContext) RunAction(ctx context.Context, state *domain.State, action domain.Action, env map[string]string) (*domain.ActionOutput, error) {
	res, err := p.call(ctx, request{Kind: kindAction, State: state, Action: &action, Env: env})
	if err != nil {
		return nil, err
	}
	return &domain.ActionOutput{
		State:   res.State,
		Results: res.Results,
		Failure: res.Failure,
	}, nil
}

func (p *processContext) ComponentLogs() []domain.LogLine {
	return append([]domain.LogLine(nil), p.logs...)
}

func (p *processContext) call(ctx context.Context, req request) (*response, error) {
	p.logs = nil

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.cfg.Command, p.cfg.Args...)
	cmd.Dir = p.cfg.Dir
	cmd.Env = cmd.Environ()
	for k, v := range p.cfg.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	for k, v := range req.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = p.side

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("bridge %s failed: %w", p.cfg.Command, err)
	}

	trimmed := strings.TrimSpace(stdout.String())
	if trimmed == "" {
		return nil, fmt.Errorf("bridge %s produced no output", p.cfg.Command)
	}

	var res response
	if err := json.Unmarshal([]byte(trimmed), &res); err != nil {
		return nil, fmt.Errorf("invalid bridge response: %w", err)
	}
	p.logs = res.Logs
	return &res, nil
}
