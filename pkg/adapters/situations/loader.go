// Package situations loads the per-situation default mounts from a
// repository's virtual_fs tree and watches it for changes.
//
// Layout: <virtual_fs>/<situation>/<container>/spec.yaml, where spec.yaml maps
// container names to their mounts:
//
//	foo:
//	  mounts:
//	    /opt/baz/: kazoo
//
// Relative sources resolve against the directory holding spec.yaml.
package situations

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/theatre/internal/logging"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/ports"
	"gopkg.in/yaml.v3"
)

// SpecFile is the name of the per-container mount spec.
const SpecFile = "spec.yaml"

type containerSpec struct {
	Mounts map[string]string `yaml:"mounts"`
}

// Loader reads a virtual_fs tree into a domain.MountConfig.
type Loader struct {
	root   string
	logger *slog.Logger
}

var (
	_ ports.MountLoader = (*Loader)(nil)
	_ ports.Watchable   = (*Loader)(nil)
)

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader for the virtual_fs directory at root.
func NewLoader(root string, opts ...Option) *Loader {
	l := &Loader{root: root, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Root is the watched virtual_fs directory.
func (l *Loader) Root() string { return l.root }

// LoadMounts walks every situation and container directory. A missing
// root or spec file means no mounts.
func (l *Loader) LoadMounts() (domain.MountConfig, error) {
	cfg := domain.MountConfig{}

	situations, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", l.root, err)
	}

	for _, sit := range situations {
		if !sit.IsDir() {
			continue
		}
		sitDir := filepath.Join(l.root, sit.Name())
		containers, err := os.ReadDir(sitDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read situation %s: %w", sit.Name(), err)
		}

		situation := domain.Situation{}
		for _, c := range containers {
			if !c.IsDir() {
				continue
			}
			specPath := filepath.Join(sitDir, c.Name(), SpecFile)
			specs, err := readSpec(specPath)
			if err != nil {
				return nil, err
			}
			for container, spec := range specs {
				mounts := situation[container]
				if mounts == nil {
					mounts = domain.ContainerMounts{}
				}
				for target, src := range spec.Mounts {
					if !filepath.IsAbs(src) {
						src = filepath.Join(filepath.Dir(specPath), src)
					}
					mounts[target] = src
				}
				situation[container] = mounts
			}
		}
		cfg[sit.Name()] = situation
		l.logger.Debug("situation loaded", "situation", sit.Name(), "containers", len(situation))
	}
	return cfg, nil
}

func readSpec(path string) (map[string]containerSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var specs map[string]containerSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return specs, nil
}
