package domain

import "sort"

// DefaultSituation is the situation applied when none is configured.
const DefaultSituation = "default"

// ContainerMounts maps a target path inside a container to a source directory.
type ContainerMounts map[string]string

// Situation maps a container name to its default mounts.
type Situation map[string]ContainerMounts

// MountConfig is the repository-level mount configuration: situation name
// to container defaults. It is queried read-only.
type MountConfig map[string]Situation

// Defaults returns the mounts a container gets in the given situation when
// the state does not declare any. The result is keyed by target path.
func (c MountConfig) Defaults(situation, container string) map[string]Mount {
	sit, ok := c[situation]
	if !ok {
		return nil
	}
	cm, ok := sit[container]
	if !ok || len(cm) == 0 {
		return nil
	}
	out := make(map[string]Mount, len(cm))
	for target, src := range cm {
		out[target] = Mount{Location: target, Src: src}
	}
	return out
}

// Situations lists the configured situation names in order.
func (c MountConfig) Situations() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
