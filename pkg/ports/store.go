package ports

import (
	"context"

	"github.com/aretw0/theatre/pkg/domain"
)

// SceneStore persists scene descriptions so node and edge identity survives
// a save/reload cycle.
type SceneStore interface {
	// Save persists the scene under the given name, replacing any previous version.
	Save(ctx context.Context, name string, scene *domain.SceneSpec) error

	// Load retrieves a scene.
	// Returns domain.ErrSceneNotFound if the scene does not exist.
	Load(ctx context.Context, name string) (*domain.SceneSpec, error)

	// Delete removes a scene. Deleting a missing scene is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored scenes.
	List(ctx context.Context) ([]string, error)
}
