package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/theatre/pkg/adapters/memory"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/persistence/middleware"
	"github.com/aretw0/theatre/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, middleware.KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func secretScene() *domain.SceneSpec {
	return &domain.SceneSpec{
		Name:      "s",
		Situation: "prod",
		Nodes: []domain.NodeSpec{{
			ID: "n",
			Custom: &domain.State{
				Secrets: []domain.Secret{{ID: "secret:1", Contents: map[string]string{"password": "hunter2"}}},
			},
		}},
	}
}

func encrypted(t *testing.T, store ports.SceneStore, cfg middleware.EncryptionConfig) ports.SceneStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(store)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunSceneStoreContract(t, encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	require.NoError(t, secure.Save(ctx, "s", secretScene()))

	stored, err := underlying.Load(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, stored.Nodes, "nodes must not be stored in clear")
	assert.NotEmpty(t, stored.Sealed)
	assert.NotContains(t, stored.Sealed, "hunter2")
	assert.Equal(t, "prod", stored.Situation)

	loaded, err := secure.Load(ctx, "s")
	require.NoError(t, err)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, "hunter2", loaded.Nodes[0].Custom.Secrets[0].Contents["password"])
	assert.Empty(t, loaded.Sealed)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	require.NoError(t, encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey}).Save(ctx, "s", secretScene()))

	rotated := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := rotated.Load(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, loaded.Nodes, 1)

	wrong := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey})
	_, err = wrong.Load(ctx, "s")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_FailSecure(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(ctx, "plain", secretScene()))

	_, err := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)}).Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)
}

func TestEncryptionMiddleware_KeySize(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
}
