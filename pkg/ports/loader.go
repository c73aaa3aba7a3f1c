package ports

import (
	"context"

	"github.com/aretw0/theatre/pkg/domain"
)

// MountLoader reads the repository-level mount configuration.
type MountLoader interface {
	LoadMounts() (domain.MountConfig, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying configuration changes.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
