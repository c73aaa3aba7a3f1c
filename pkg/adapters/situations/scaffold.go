package situations

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aretw0/theatre/pkg/domain"
	"gopkg.in/yaml.v3"
)

type metadata struct {
	Name       string         `yaml:"name"`
	Containers map[string]any `yaml:"containers"`
}

// ReadContainers returns the container names declared by a charm's
// metadata.yaml, sorted.
func ReadContainers(metadataPath string) ([]string, error) {
	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read charm metadata: %w", err)
	}
	var meta metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(metadataPath), err)
	}
	names := make([]string, 0, len(meta.Containers))
	for name := range meta.Containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Scaffold creates <root>/<situation>/<container>/spec.yaml for each
// container, with no mounts. Existing spec files are left alone.
func Scaffold(root, situation string, containers []string) error {
	if situation == "" {
		situation = domain.DefaultSituation
	}
	for _, name := range containers {
		dir := filepath.Join(root, situation, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		path := filepath.Join(dir, SpecFile)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		data, err := yaml.Marshal(map[string]containerSpec{name: {Mounts: map[string]string{}}})
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}
