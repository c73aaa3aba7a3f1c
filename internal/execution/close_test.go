package execution

import (
	"testing"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeState() *domain.State {
	return &domain.State{
		Containers: []domain.Container{{Name: "foo"}},
		Relations: []domain.Relation{
			{ID: 1, Endpoint: "db"},
			{ID: 2, Endpoint: "ingress"},
			{ID: 3, Endpoint: "ingress"},
		},
		Storages: []domain.Storage{{Name: "data", Index: 0}, {Name: "data", Index: 1}},
		Secrets:  []domain.Secret{{ID: "secret:1", Label: "creds"}},
	}
}

func TestCloseEvent_Relation(t *testing.T) {
	ev, err := CloseEvent(closeState(), domain.Event{Name: "db-relation-changed"}, map[string]any{"remote_unit_id": "2"})
	require.NoError(t, err)
	require.NotNil(t, ev.Relation)
	assert.Equal(t, 1, ev.Relation.ID)
	require.NotNil(t, ev.RemoteUnitID)
	assert.Equal(t, 2, *ev.RemoteUnitID)
}

func TestCloseEvent_AmbiguousRelation(t *testing.T) {
	_, err := CloseEvent(closeState(), domain.Event{Name: "ingress-relation-joined"}, nil)
	assert.ErrorIs(t, err, domain.ErrCloseEvent)

	ev, err := CloseEvent(closeState(), domain.Event{Name: "ingress-relation-joined"}, map[string]any{"relation_id": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, ev.Relation.ID)
}

func TestCloseEvent_Workload(t *testing.T) {
	ev, err := CloseEvent(closeState(), domain.Event{Name: "foo-pebble-ready"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "foo", ev.Container.Name)

	_, err = CloseEvent(closeState(), domain.Event{Name: "bar-pebble-ready"}, nil)
	assert.ErrorIs(t, err, domain.ErrCloseEvent)
}

func TestCloseEvent_Storage(t *testing.T) {
	ev, err := CloseEvent(closeState(), domain.Event{Name: "data-storage-attached"}, map[string]any{"storage_index": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Storage.Index)
}

func TestCloseEvent_Secret(t *testing.T) {
	ev, err := CloseEvent(closeState(), domain.Event{Name: "secret-changed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "secret:1", ev.Secret.ID)

	ev, err = CloseEvent(closeState(), domain.Event{Name: "secret-changed"}, map[string]any{"secret_id": "creds"})
	require.NoError(t, err)
	assert.Equal(t, "secret:1", ev.Secret.ID)
}

func TestCloseEvent_KeepsExplicitReferences(t *testing.T) {
	explicit := &domain.Container{Name: "other"}
	ev, err := CloseEvent(closeState(), domain.Event{Name: "foo-pebble-ready", Container: explicit}, nil)
	require.NoError(t, err)
	assert.Same(t, explicit, ev.Container)
}

func TestCloseEvent_LifecycleUntouched(t *testing.T) {
	in := domain.Event{Name: "install"}
	ev, err := CloseEvent(nil, in, nil)
	require.NoError(t, err)
	assert.Equal(t, in, ev)
}
