package theatre

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/theatre/pkg/adapters/process"
	"github.com/aretw0/theatre/pkg/adapters/situations"
	"github.com/aretw0/theatre/pkg/domain"
)

// DirName is the per-repository directory holding theatre's files.
const DirName = ".theatre"

// MetadataFile is the charm metadata read by Init to discover containers.
const MetadataFile = "metadata.yaml"

// Layout locates the files under a repository's .theatre directory.
type Layout struct {
	Root string
	Dir  string
}

// NewLayout returns the layout of the charm repository at root.
func NewLayout(root string) Layout {
	return Layout{Root: root, Dir: filepath.Join(root, DirName)}
}

func (l Layout) VirtualFS() string    { return filepath.Join(l.Dir, "virtual_fs") }
func (l Layout) Scenes() string       { return filepath.Join(l.Dir, "scenes") }
func (l Layout) Deltas() string       { return filepath.Join(l.Dir, "deltas") }
func (l Layout) RunnerConfig() string { return filepath.Join(l.Dir, "runner.yaml") }
func (l Layout) Metadata() string     { return filepath.Join(l.Root, MetadataFile) }

// Init prepares a charm repository: it creates the .theatre tree, a
// runner.yaml template and, when metadata.yaml declares containers, an
// empty spec.yaml per container in the default situation. Existing files
// are kept, so Init is safe to re-run.
func Init(repoPath string) (Layout, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return Layout{}, fmt.Errorf("invalid path: %w", err)
	}
	l := NewLayout(absPath)

	for _, dir := range []string{
		filepath.Join(l.VirtualFS(), domain.DefaultSituation),
		l.Scenes(),
		l.Deltas(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return l, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(l.RunnerConfig()); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(l.RunnerConfig(), []byte(process.Template), 0o644); err != nil {
			return l, fmt.Errorf("failed to write runner config: %w", err)
		}
	}

	if _, err := os.Stat(l.Metadata()); err == nil {
		containers, err := situations.ReadContainers(l.Metadata())
		if err != nil {
			return l, err
		}
		if err := situations.Scaffold(l.VirtualFS(), domain.DefaultSituation, containers); err != nil {
			return l, err
		}
	}
	return l, nil
}
