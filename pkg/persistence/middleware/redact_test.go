package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/theatre/pkg/adapters/memory"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/persistence/middleware"
	"github.com/aretw0/theatre/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewRedactMiddleware([]string{"(?i)password"})
	require.NoError(t, err)
	ports.RunSceneStoreContract(t, mw(memory.NewStore()))
}

func TestRedactMiddleware_MasksCustomValues(t *testing.T) {
	ctx := context.Background()
	mw, err := middleware.NewRedactMiddleware([]string{"(?i)password", "^token$"})
	require.NoError(t, err)
	underlying := memory.NewStore()
	store := mw(underlying)

	scene := secretScene()
	custom := scene.Nodes[0].Custom
	custom.Config = map[string]any{
		"db-password": "p",
		"port":        5432,
		"nested":      map[string]any{"token": "t"},
	}
	custom.Relations = []domain.Relation{{
		ID:              1,
		Endpoint:        "db",
		RemoteAppData:   map[string]string{"password": "p", "host": "h"},
		RemoteUnitsData: map[string]map[string]string{"db/0": {"token": "t"}},
	}}

	require.NoError(t, store.Save(ctx, "s", scene))

	loaded, err := underlying.Load(ctx, "s")
	require.NoError(t, err)
	got := loaded.Nodes[0].Custom
	assert.Equal(t, middleware.Mask, got.Config["db-password"])
	assert.EqualValues(t, 5432, got.Config["port"])
	assert.Equal(t, middleware.Mask, got.Config["nested"].(map[string]any)["token"])
	assert.Equal(t, middleware.Mask, got.Secrets[0].Contents["password"])
	assert.Equal(t, middleware.Mask, got.Relations[0].RemoteAppData["password"])
	assert.Equal(t, "h", got.Relations[0].RemoteAppData["host"])
	assert.Equal(t, middleware.Mask, got.Relations[0].RemoteUnitsData["db/0"]["token"])

	// The caller's scene is untouched.
	assert.Equal(t, "p", custom.Config["db-password"])
	assert.Equal(t, "hunter2", custom.Secrets[0].Contents["password"])
}

func TestRedactMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewRedactMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_EncryptsRedactedScene(t *testing.T) {
	ctx := context.Background()
	redact, err := middleware.NewRedactMiddleware(nil)
	require.NoError(t, err)
	seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	underlying := memory.NewStore()
	store := middleware.Chain(underlying, redact, seal)
	require.NoError(t, store.Save(ctx, "s", secretScene()))

	raw, err := underlying.Load(ctx, "s")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Sealed)

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Nodes[0].Custom.Secrets[0].Contents["password"])
}
