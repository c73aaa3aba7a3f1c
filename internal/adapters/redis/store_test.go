package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/theatre/internal/adapters/redis"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunSceneStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute), redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s", &domain.SceneSpec{Name: "s"}))
	assert.True(t, mr.Exists("test:s"))
	assert.Equal(t, time.Minute, mr.TTL("test:s"))

	mr.FastForward(2 * time.Minute)
	_, err := store.Load(ctx, "s")
	assert.ErrorIs(t, err, domain.ErrSceneNotFound)
}
