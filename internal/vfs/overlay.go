// Package vfs implements the copy-on-evaluate overlay that gives every
// evaluation a private copy of the directories mounted into its containers.
package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/aretw0/theatre/internal/logging"
	"github.com/aretw0/theatre/pkg/domain"
)

// Overlay rewrites the mount sources of a state to fresh copies.
type Overlay struct {
	mu        sync.RWMutex
	cfg       domain.MountConfig
	situation string
	logger    *slog.Logger
}

// Option configures an Overlay.
type Option func(*Overlay)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Overlay) {
		o.logger = logger
	}
}

// New creates an overlay applying the default mounts of the given situation.
// An empty situation means domain.DefaultSituation.
func New(cfg domain.MountConfig, situation string, opts ...Option) *Overlay {
	if situation == "" {
		situation = domain.DefaultSituation
	}
	o := &Overlay{
		cfg:       cfg,
		situation: situation,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Situation returns the situation being applied.
func (o *Overlay) Situation() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.situation
}

// SetConfig swaps the mount configuration, e.g. after the files changed on disk.
func (o *Overlay) SetConfig(cfg domain.MountConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = cfg
}

// SetSituation switches the situation whose defaults are attached.
func (o *Overlay) SetSituation(situation string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.situation = situation
}

// Apply returns a copy of state in which every container without explicit
// mounts receives the situation defaults, and every mount source has been
// copied to a new directory under scratchRoot. The input is never mutated.
func (o *Overlay) Apply(state *domain.State, scratchRoot string) (*domain.State, error) {
	o.mu.RLock()
	cfg, situation := o.cfg, o.situation
	o.mu.RUnlock()

	next := state.Clone()
	if next == nil {
		next = domain.NewState()
	}

	for i := range next.Containers {
		c := &next.Containers[i]
		if len(c.Mounts) == 0 {
			if defaults := cfg.Defaults(situation, c.Name); defaults != nil {
				c.Mounts = defaults
			}
		}
		if len(c.Mounts) == 0 {
			continue
		}

		keys := make([]string, 0, len(c.Mounts))
		for k := range c.Mounts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			m := c.Mounts[key]
			copied, err := o.copyMount(m.Src, scratchRoot)
			if err != nil {
				return nil, fmt.Errorf("container %s mount %s: %w", c.Name, key, err)
			}
			o.logger.Debug("mount copied", "container", c.Name, "location", m.Location, "src", m.Src, "copy", copied)
			m.Src = copied
			c.Mounts[key] = m
		}
	}
	return next, nil
}

func (o *Overlay) copyMount(src, scratchRoot string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrResourceMissing, src)
		}
		return "", err
	}

	if err := os.MkdirAll(scratchRoot, 0o700); err != nil {
		return "", fmt.Errorf("failed to create scratch root: %w", err)
	}
	dst, err := os.MkdirTemp(scratchRoot, "mount-")
	if err != nil {
		return "", fmt.Errorf("failed to create mount copy: %w", err)
	}
	return copyTree(src, dst)
}
