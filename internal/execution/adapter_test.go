package execution

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/ports"
	"github.com/aretw0/theatre/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_Run(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Handle("config-changed", func(c *registry.Call) (*domain.State, error) {
		c.Log("DEBUG", "reconfiguring")
		c.Printf("   \n")
		c.Printf("rendered config")
		return c.State.Replace(func(s *domain.State) { s.UnitStatus = domain.Status{Name: "active"} }), nil
	})

	a := New(reg)
	out, err := a.Execute(context.Background(), domain.NewState(), domain.NewEventSpec("config-changed"))
	require.NoError(t, err)

	assert.Nil(t, out.Failure)
	assert.Equal(t, "active", out.State.UnitStatus.Name)
	assert.Equal(t, []domain.LogLine{{Level: "DEBUG", Message: "reconfiguring"}}, out.ComponentLogs)
	assert.Equal(t, "rendered config", out.SideChannel)
}

func TestAdapter_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	reg := registry.NewRegistry()
	reg.Handle("install", func(c *registry.Call) (*domain.State, error) { return nil, boom })

	_, err := New(reg).Execute(context.Background(), domain.NewState(), domain.NewEventSpec("install"))
	assert.ErrorIs(t, err, boom)
}

func TestAdapter_NilSpec(t *testing.T) {
	_, err := New(registry.NewRegistry()).Execute(context.Background(), domain.NewState(), nil)
	assert.ErrorIs(t, err, domain.ErrEventSpecUnset)
}

func TestAdapter_ClosesWorkloadEvent(t *testing.T) {
	var seen *domain.Container
	reg := registry.NewRegistry()
	reg.Handle("foo-pebble-ready", func(c *registry.Call) (*domain.State, error) {
		seen = c.Event.Container
		return c.State, nil
	})

	state := &domain.State{Containers: []domain.Container{{Name: "foo", CanConnect: true}}}
	_, err := New(reg).Execute(context.Background(), state, domain.NewEventSpec("foo-pebble-ready"))
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "foo", seen.Name)
	assert.True(t, seen.CanConnect)
}

func TestAdapter_UnclosableEventFiresAsIs(t *testing.T) {
	var seen domain.Event
	reg := registry.NewRegistry()
	reg.HandleAll(func(c *registry.Call) (*domain.State, error) {
		seen = c.Event
		return c.State, nil
	})

	_, err := New(reg).Execute(context.Background(), domain.NewState(), domain.NewEventSpec("db-relation-changed"))
	require.NoError(t, err)
	assert.Equal(t, "db-relation-changed", seen.Name)
	assert.Nil(t, seen.Relation)
}

func TestAdapter_Action(t *testing.T) {
	reg := registry.NewRegistry()
	reg.HandleAction("backup", func(c *registry.Call, a domain.Action) (*domain.ActionOutput, error) {
		return &domain.ActionOutput{
			State:   c.State.Replace(func(s *domain.State) { s.StoredState = map[string]any{"backups": 1} }),
			Results: map[string]any{"where": a.Params["where"]},
			Logs:    []string{"backing up"},
		}, nil
	})

	spec := &domain.EventSpec{Event: domain.Event{Name: "backup-action"}, Args: map[string]any{"where": "s3"}}
	out, err := New(reg).Execute(context.Background(), domain.NewState(), spec)
	require.NoError(t, err)

	assert.Equal(t, "s3", out.ActionResults["where"])
	assert.Equal(t, 1, out.State.StoredState["backups"])
	assert.Contains(t, out.ComponentLogs, domain.LogLine{Level: "ACTION", Message: "backing up"})
	assert.Equal(t, []string{"backup-action"}, reg.History())
}

func TestAdapter_ActionFailure(t *testing.T) {
	reg := registry.NewRegistry()
	reg.HandleAction("backup", func(c *registry.Call, a domain.Action) (*domain.ActionOutput, error) {
		return &domain.ActionOutput{State: c.State, Failure: "disk full"}, nil
	})

	_, err := New(reg).Execute(context.Background(), domain.NewState(), domain.NewEventSpec("backup-action"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAdapter_FreshContextPerCall(t *testing.T) {
	created := 0
	reg := registry.NewRegistry()
	factory := ports.ContextFactoryFunc(func(side io.Writer) (ports.ExecutionContext, error) {
		created++
		return reg.NewContext(side)
	})

	a := New(factory)
	for i := 0; i < 3; i++ {
		_, err := a.Execute(context.Background(), domain.NewState(), domain.NewEventSpec("start"))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, created)
}
