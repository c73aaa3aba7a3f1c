package script

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/theatre/internal/logging"
	"github.com/aretw0/theatre/pkg/domain"
)

// Library resolves delta names to scripts stored as <dir>/<name>.go.
// Compiled scripts are cached until Reset.
type Library struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	cache   map[string]domain.Delta
	builtin map[string]domain.Delta
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		l.logger = logger
	}
}

// WithDelta registers an in-process delta that shadows any script of the same name.
func WithDelta(d domain.Delta) Option {
	return func(l *Library) {
		l.builtin[d.Name] = d
	}
}

// NewLibrary creates a library over dir. dir may be empty or missing.
func NewLibrary(dir string, opts ...Option) *Library {
	l := &Library{
		dir:     dir,
		logger:  logging.NewNop(),
		cache:   map[string]domain.Delta{},
		builtin: map[string]domain.Delta{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve returns the delta called name.
func (l *Library) Resolve(name string) (domain.Delta, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if d, ok := l.builtin[name]; ok {
		return d, nil
	}
	if d, ok := l.cache[name]; ok {
		return d, nil
	}
	if l.dir == "" || strings.ContainsAny(name, `/\`) {
		return domain.Delta{}, fmt.Errorf("%w: %s", domain.ErrDeltaNotFound, name)
	}

	src, err := os.ReadFile(filepath.Join(l.dir, name+".go"))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Delta{}, fmt.Errorf("%w: %s", domain.ErrDeltaNotFound, name)
		}
		return domain.Delta{}, fmt.Errorf("failed to read delta %s: %w", name, err)
	}
	d, err := Compile(name, string(src))
	if err != nil {
		return domain.Delta{}, err
	}
	l.cache[name] = d
	l.logger.Debug("delta compiled", "delta", name)
	return d, nil
}

// Names lists the available deltas, builtin and scripted, sorted.
func (l *Library) Names() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := map[string]bool{}
	for name := range l.builtin {
		seen[name] = true
	}
	if l.dir != "" {
		entries, err := os.ReadDir(l.dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to list deltas: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".go" {
				continue
			}
			seen[strings.TrimSuffix(e.Name(), ".go")] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Reset drops compiled scripts so edits on disk are picked up.
func (l *Library) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = map[string]domain.Delta{}
}
